package controller

import (
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires the study API routes. The frontend in staticDir is served
// only when the directory exists.
func NewRouter(c *RAGController, staticDir string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), AccessLog(logger), CORS())

	router.GET("/health", c.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/subjects", c.ListSubjects)
	router.POST("/upload/:subject", c.UploadFile)
	router.POST("/ingest/:subject", c.Ingest)
	router.GET("/status/:subject", c.Status)
	router.DELETE("/files/:subject/:category/:filename", c.DeleteFile)
	router.GET("/retrieve/:subject", c.Retrieve)

	generate := router.Group("/generate")
	{
		generate.POST("/mcqs/:subject", c.GenerateMCQs)
		generate.POST("/flashcards/:subject", c.GenerateFlashcards)
	}
	router.POST("/validate/query/:subject", c.ValidateQuery)

	if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
		index := filepath.Join(staticDir, "index.html")
		router.Static("/static", staticDir)
		router.StaticFile("/", index)
		router.StaticFile("/app", index)
		router.StaticFile("/index.html", index)
		logger.Info("serving frontend", zap.String("dir", staticDir))
	}

	return router
}
