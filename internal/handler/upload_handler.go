package handler

import (
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/errcode"
	"github.com/xxxsen/studynote/internal/pkg/response"
	"github.com/xxxsen/studynote/internal/service"
)

type UploadHandler struct {
	knowledge *service.Knowledge
	scratch   string
	maxBytes  int64
}

func NewUploadHandler(knowledge *service.Knowledge, scratchDir string, maxBytes int64) *UploadHandler {
	return &UploadHandler{knowledge: knowledge, scratch: scratchDir, maxBytes: maxBytes}
}

// Document accepts a .pdf/.txt/.md upload and rebuilds the named document
// collection from it.
func (h *UploadHandler) Document(c *gin.Context) {
	collection := c.PostForm("collection")
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Error(c, errcode.ErrInvalidFile, "file too large")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	key := model.StoreKey{Owner: getUserID(c), Kind: model.KindDocument, Collection: collection}
	if err := h.knowledge.IngestDocument(c.Request.Context(), key, file.Filename, opened, file.Size); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"collection": collection})
}

// Video accepts a video upload, transcribes it and rebuilds the named
// document collection from the transcript.
func (h *UploadHandler) Video(c *gin.Context) {
	collection := c.PostForm("collection")
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Error(c, errcode.ErrInvalidFile, "file too large")
		return
	}

	scratchPath := filepath.Join(h.scratch, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, scratchPath); err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to store upload")
		return
	}
	defer os.Remove(scratchPath)

	key := model.StoreKey{Owner: getUserID(c), Kind: model.KindDocument, Collection: collection}
	if err := h.knowledge.IngestMedia(c.Request.Context(), key, file.Filename, scratchPath); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"collection": collection})
}
