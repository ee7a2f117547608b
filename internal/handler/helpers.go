package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/middleware"
	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/errcode"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func parseKind(s string) (model.CollectionKind, bool) {
	kind := model.CollectionKind(s)
	return kind, kind.Valid()
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method), zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)), zap.Error(err))
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrBusy):
		response.Error(c, errcode.ErrBusy, "ingestion in progress")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrUpstream):
		response.Error(c, errcode.ErrUpstream, "upstream failure")
	case errors.Is(err, appErr.ErrCorrupted):
		response.Error(c, errcode.ErrCorrupted, "store corrupted")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
