package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/middleware"
)

type RouterDeps struct {
	Uploads   *UploadHandler
	Stores    *StoreHandler
	Chat      *ChatHandler
	Analysis  *AnalysisHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/upload/document", deps.Uploads.Document)
	authGroup.POST("/upload/video", deps.Uploads.Video)

	authGroup.POST("/notes", deps.Stores.IngestNotes)
	authGroup.GET("/store/exists", deps.Stores.Exists)
	authGroup.DELETE("/store", deps.Stores.Delete)

	authGroup.POST("/chat", deps.Chat.Query)
	authGroup.POST("/explain", deps.Chat.Explain)

	authGroup.POST("/analysis", deps.Analysis.Analyze)
	authGroup.POST("/analysis/corrections", deps.Analysis.Corrections)
}
