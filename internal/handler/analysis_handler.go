package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/errcode"
	"github.com/xxxsen/studynote/internal/pkg/response"
	"github.com/xxxsen/studynote/internal/service"
)

type AnalysisHandler struct {
	knowledge *service.Knowledge
}

func NewAnalysisHandler(knowledge *service.Knowledge) *AnalysisHandler {
	return &AnalysisHandler{knowledge: knowledge}
}

type analyzeRequest struct {
	UserText      string `json:"user_text"`
	ReferenceText string `json:"reference_text"`
	// When reference_text is empty, the reference is built from the stored
	// collection by explaining the topic.
	Kind       string `json:"kind"`
	Collection string `json:"collection"`
	Topic      string `json:"topic"`
}

type correctionsRequest struct {
	UserText      string `json:"user_text"`
	ReferenceText string `json:"reference_text"`
}

func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	var result *model.AnalysisResult
	var err error
	if strings.TrimSpace(req.ReferenceText) != "" {
		result, err = h.knowledge.Analyze(c.Request.Context(), req.UserText, req.ReferenceText)
	} else {
		kind, ok := parseKind(req.Kind)
		if !ok {
			response.Error(c, errcode.ErrInvalid, "unknown kind")
			return
		}
		key := model.StoreKey{Owner: getUserID(c), Kind: kind, Collection: req.Collection}
		result, err = h.knowledge.AnalyzeAgainst(c.Request.Context(), key, req.Topic, req.UserText)
	}
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *AnalysisHandler) Corrections(c *gin.Context) {
	var req correctionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	text, err := h.knowledge.Corrections(c.Request.Context(), req.UserText, req.ReferenceText)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"corrections": text})
}
