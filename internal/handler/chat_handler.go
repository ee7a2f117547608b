package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/errcode"
	"github.com/xxxsen/studynote/internal/pkg/response"
	"github.com/xxxsen/studynote/internal/service"
)

type ChatHandler struct {
	knowledge *service.Knowledge
}

func NewChatHandler(knowledge *service.Knowledge) *ChatHandler {
	return &ChatHandler{knowledge: knowledge}
}

type chatRequest struct {
	Kind       string `json:"kind"`
	Collection string `json:"collection"`
	Question   string `json:"question"`
}

type explainRequest struct {
	Kind       string `json:"kind"`
	Collection string `json:"collection"`
	Topic      string `json:"topic"`
}

func (h *ChatHandler) Query(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	kind, ok := parseKind(req.Kind)
	if !ok {
		response.Error(c, errcode.ErrInvalid, "unknown kind")
		return
	}
	key := model.StoreKey{Owner: getUserID(c), Kind: kind, Collection: req.Collection}
	answer, err := h.knowledge.Query(c.Request.Context(), key, req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"answer": answer})
}

func (h *ChatHandler) Explain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	kind, ok := parseKind(req.Kind)
	if !ok {
		response.Error(c, errcode.ErrInvalid, "unknown kind")
		return
	}
	key := model.StoreKey{Owner: getUserID(c), Kind: kind, Collection: req.Collection}
	explanation, err := h.knowledge.ExplainTopic(c.Request.Context(), key, req.Topic)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"explanation": explanation})
}
