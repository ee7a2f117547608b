package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/errcode"
	"github.com/xxxsen/studynote/internal/pkg/response"
	"github.com/xxxsen/studynote/internal/service"
)

type StoreHandler struct {
	knowledge *service.Knowledge
}

func NewStoreHandler(knowledge *service.Knowledge) *StoreHandler {
	return &StoreHandler{knowledge: knowledge}
}

type ingestNotesRequest struct {
	Collection string `json:"collection"`
	Text       string `json:"text"`
}

// IngestNotes rebuilds the notes collection from raw (possibly markdown)
// note text.
func (h *StoreHandler) IngestNotes(c *gin.Context) {
	var req ingestNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	key := model.StoreKey{Owner: getUserID(c), Kind: model.KindNotes, Collection: req.Collection}
	if err := h.knowledge.IngestText(c.Request.Context(), key, req.Text, "notes"); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"collection": req.Collection})
}

func (h *StoreHandler) Exists(c *gin.Context) {
	kind, ok := parseKind(c.Query("kind"))
	if !ok {
		response.Error(c, errcode.ErrInvalid, "unknown kind")
		return
	}
	key := model.StoreKey{Owner: getUserID(c), Kind: kind, Collection: c.Query("collection")}
	exists, err := h.knowledge.Exists(c.Request.Context(), key)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"exists": exists})
}

func (h *StoreHandler) Delete(c *gin.Context) {
	kind, ok := parseKind(c.Query("kind"))
	if !ok {
		response.Error(c, errcode.ErrInvalid, "unknown kind")
		return
	}
	key := model.StoreKey{Owner: getUserID(c), Kind: kind, Collection: c.Query("collection")}
	if err := h.knowledge.Delete(c.Request.Context(), key); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
