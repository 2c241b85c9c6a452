package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/itish2003/studyrag/models"
	"github.com/itish2003/studyrag/services"
)

// RAGController handles the HTTP requests for the study API. It depends on
// the RAGService to perform the actual business logic.
type RAGController struct {
	ragService services.RAGService
	logger     *zap.Logger
}

// NewRAGController is a constructor function that creates a new RAGController.
// This is called from main.go to inject the service dependency.
func NewRAGController(service services.RAGService, logger *zap.Logger) *RAGController {
	return &RAGController{
		ragService: service,
		logger:     logger.Named("http"),
	}
}

// Health is the Gin handler for GET /health.
func (c *RAGController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "Study RAG API",
		"version": "1.0.0",
	})
}

// ListSubjects is the Gin handler for GET /subjects.
func (c *RAGController) ListSubjects(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, models.SubjectsResponse{Subjects: c.ragService.Subjects()})
}

// UploadFile is the Gin handler for POST /upload/:subject.
// It expects a multipart form with a "category" field and a "file" part.
func (c *RAGController) UploadFile(ctx *gin.Context) {
	subject := ctx.Param("subject")
	category := ctx.PostForm("category")

	header, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing file: " + err.Error()})
		return
	}
	file, err := header.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file: " + err.Error()})
		return
	}
	defer file.Close()

	path, err := c.ragService.UploadFile(subject, category, header.Filename, file)
	if err != nil {
		c.fail(ctx, err, "Failed to save file")
		return
	}

	ctx.JSON(http.StatusCreated, models.UploadResponse{
		Message:  fmt.Sprintf("Uploaded %s to %s/%s", header.Filename, subject, category),
		Path:     path,
		Category: category,
	})
}

// DeleteFile is the Gin handler for DELETE /files/:subject/:category/:filename.
func (c *RAGController) DeleteFile(ctx *gin.Context) {
	subject, category, filename := ctx.Param("subject"), ctx.Param("category"), ctx.Param("filename")

	if err := c.ragService.DeleteFile(subject, category, filename); err != nil {
		c.fail(ctx, err, "Failed to delete file")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Deleted %s from %s/%s", filename, subject, category)})
}

// Ingest is the Gin handler for POST /ingest/:subject. It rebuilds the
// subject's index from the PDFs on disk.
func (c *RAGController) Ingest(ctx *gin.Context) {
	subject := ctx.Param("subject")

	summary, err := c.ragService.Ingest(ctx.Request.Context(), subject)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			c.logger.Error("ingestion failed", zap.String("subject", subject), zap.Error(err))
		}
		// The summary still tells the client which documents failed.
		ctx.JSON(status, models.IngestResponse{
			Message: "Ingestion failed",
			Summary: summary,
			Error:   err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, models.IngestResponse{
		Message: fmt.Sprintf("Ingested %d chunks from %d documents", summary.ChunkCount, len(summary.Documents)),
		Summary: summary,
	})
}

// Status is the Gin handler for GET /status/:subject.
func (c *RAGController) Status(ctx *gin.Context) {
	status, err := c.ragService.Status(ctx.Request.Context(), ctx.Param("subject"))
	if err != nil {
		c.fail(ctx, err, "Failed to read subject status")
		return
	}
	ctx.JSON(http.StatusOK, status)
}

// GenerateMCQs is the Gin handler for POST /generate/mcqs/:subject?query=.
func (c *RAGController) GenerateMCQs(ctx *gin.Context) {
	var req models.GenerateRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := c.ragService.GenerateMCQs(ctx.Request.Context(), ctx.Param("subject"), req.Query)
	if err != nil {
		c.fail(ctx, err, "Failed to generate MCQs")
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// GenerateFlashcards is the Gin handler for POST /generate/flashcards/:subject?query=&num_cards=.
func (c *RAGController) GenerateFlashcards(ctx *gin.Context) {
	var req models.GenerateRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.NumCards <= 0 {
		req.NumCards = services.DefaultNumCards
	}

	response, err := c.ragService.GenerateFlashcards(ctx.Request.Context(), ctx.Param("subject"), req.Query, req.NumCards)
	if err != nil {
		c.fail(ctx, err, "Failed to generate flashcards")
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// ValidateQuery is the Gin handler for POST /validate/query/:subject?query=.
func (c *RAGController) ValidateQuery(ctx *gin.Context) {
	var req models.ValidateQueryRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := c.ragService.ValidateQuery(ctx.Request.Context(), ctx.Param("subject"), req.Query)
	if err != nil {
		c.fail(ctx, err, "Failed to validate query")
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// Retrieve is the Gin handler for GET /retrieve/:subject?query=&k=&sources=.
// It returns the raw chunks scoped retrieval selects.
func (c *RAGController) Retrieve(ctx *gin.Context) {
	var req models.RetrieveRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	sources, err := ParseSources(req.Sources)
	if err != nil {
		c.fail(ctx, err, "Invalid sources")
		return
	}

	subject := ctx.Param("subject")
	result, err := c.ragService.Retrieve(ctx.Request.Context(), subject, req.Query, req.K, sources)
	if err != nil {
		c.fail(ctx, err, "Failed to retrieve context")
		return
	}
	chunks := result.Chunks
	if chunks == nil {
		chunks = []models.SourceDocument{}
	}
	ctx.JSON(http.StatusOK, models.RetrieveResponse{
		Subject:      subject,
		Query:        req.Query,
		Chunks:       chunks,
		FallbackUsed: result.FallbackUsed,
	})
}

// ParseSources parses a comma separated category list. Empty means no filter.
func ParseSources(raw string) ([]models.Category, error) {
	var out []models.Category
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		category, err := models.ParseCategory(part)
		if err != nil {
			return nil, err
		}
		out = append(out, category)
	}
	return out, nil
}

// fail writes the error response for err. Client errors carry their message;
// anything else is logged and reported with the generic message.
func (c *RAGController) fail(ctx *gin.Context, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.logger.Error(message, zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(status, gin.H{"error": message})
		return
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidSubject),
		errors.Is(err, models.ErrInvalidCategory),
		errors.Is(err, models.ErrInvalidFile):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotIngested),
		errors.Is(err, models.ErrNothingToIndex):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
