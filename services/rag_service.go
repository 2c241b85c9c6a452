package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/itish2003/studyrag/models"
	"github.com/itish2003/studyrag/vectorstore"
)

const (
	generationK = 8
	validationK = 3
	// minValidContext is the shortest retrieved context worth generating from.
	minValidContext = 50
)

// generationSources are the categories generation and query validation draw from.
var generationSources = []models.Category{models.CategoryNotes, models.CategorySyllabus}

// RAGService is the application surface used by the HTTP controller and the CLI.
type RAGService interface {
	Subjects() []string
	UploadFile(subject, category, filename string, content io.Reader) (string, error)
	DeleteFile(subject, category, filename string) error
	Ingest(ctx context.Context, subject string) (*models.IngestionSummary, error)
	Status(ctx context.Context, subject string) (*models.SubjectStatus, error)
	Retrieve(ctx context.Context, subject, query string, k int, sources []models.Category) (*models.RetrievalResult, error)
	GenerateMCQs(ctx context.Context, subject, query string) (*models.MCQResponse, error)
	GenerateFlashcards(ctx context.Context, subject, query string, numCards int) (*models.FlashcardResponse, error)
	ValidateQuery(ctx context.Context, subject, query string) (*models.ValidateQueryResponse, error)
}

// ragServiceImpl holds the dependencies it needs to do its job
type ragServiceImpl struct {
	subjects   []string
	files      *FileActions
	indexer    *IndexingService
	retriever  *RetrieverService
	mcqs       *MCQGenerator
	flashcards *FlashcardGenerator
	store      vectorstore.Store
	logger     *zap.Logger
}

// NewRAGService creates a new RAG service instance
func NewRAGService(
	subjects []string,
	files *FileActions,
	indexer *IndexingService,
	retriever *RetrieverService,
	mcqs *MCQGenerator,
	flashcards *FlashcardGenerator,
	store vectorstore.Store,
	logger *zap.Logger,
) RAGService {
	return &ragServiceImpl{
		subjects:   subjects,
		files:      files,
		indexer:    indexer,
		retriever:  retriever,
		mcqs:       mcqs,
		flashcards: flashcards,
		store:      store,
		logger:     logger.Named("service"),
	}
}

func (r *ragServiceImpl) Subjects() []string {
	return slices.Clone(r.subjects)
}

func (r *ragServiceImpl) checkSubject(subject string) error {
	if !slices.Contains(r.subjects, subject) {
		return fmt.Errorf("%w: %q", models.ErrInvalidSubject, subject)
	}
	return nil
}

func (r *ragServiceImpl) UploadFile(subject, category, filename string, content io.Reader) (string, error) {
	path, err := r.files.SaveUpload(subject, category, filename, content)
	if err != nil {
		return "", err
	}
	r.logger.Info("file uploaded", zap.String("subject", subject), zap.String("category", category), zap.String("path", path))
	return path, nil
}

func (r *ragServiceImpl) DeleteFile(subject, category, filename string) error {
	if err := r.files.DeleteFile(subject, category, filename); err != nil {
		return err
	}
	r.logger.Info("file deleted", zap.String("subject", subject), zap.String("category", category), zap.String("file", filename))
	return nil
}

func (r *ragServiceImpl) Ingest(ctx context.Context, subject string) (*models.IngestionSummary, error) {
	return r.indexer.IngestSubject(ctx, subject)
}

func (r *ragServiceImpl) Status(ctx context.Context, subject string) (*models.SubjectStatus, error) {
	if err := r.checkSubject(subject); err != nil {
		return nil, err
	}
	files, total, err := r.files.ListFiles(subject)
	if err != nil {
		return nil, err
	}
	ingested, err := r.store.Exists(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("check index for %s: %w", subject, err)
	}
	status := &models.SubjectStatus{
		Subject:    subject,
		IsIngested: ingested,
		Files:      files,
		TotalFiles: total,
	}
	if ingested {
		if status.Chunks, err = r.store.Count(ctx, subject); err != nil {
			return nil, fmt.Errorf("count chunks for %s: %w", subject, err)
		}
	}
	return status, nil
}

func (r *ragServiceImpl) Retrieve(ctx context.Context, subject, query string, k int, sources []models.Category) (*models.RetrievalResult, error) {
	return r.retriever.Retrieve(ctx, query, subject, k, sources)
}

// GenerateMCQs retrieves notes and syllabus context for query and generates
// MCQs from it. A failing model is reported as a warning with no MCQs.
func (r *ragServiceImpl) GenerateMCQs(ctx context.Context, subject, query string) (*models.MCQResponse, error) {
	res, err := r.retriever.Retrieve(ctx, query, subject, generationK, generationSources)
	if err != nil {
		return nil, err
	}
	resp := &models.MCQResponse{Subject: subject, Query: query, FallbackUsed: res.FallbackUsed, MCQs: []models.MCQ{}}

	mcqs, err := r.mcqs.Generate(ctx, models.StudentInfo{SubjectCode: subject}, res.Context())
	if err != nil {
		r.logger.Warn("mcq generation failed", zap.String("subject", subject), zap.Error(err))
		resp.Warning = "generation failed: " + err.Error()
		return resp, nil
	}
	resp.MCQs = mcqs
	return resp, nil
}

// GenerateFlashcards is GenerateMCQs for flashcards.
func (r *ragServiceImpl) GenerateFlashcards(ctx context.Context, subject, query string, numCards int) (*models.FlashcardResponse, error) {
	res, err := r.retriever.Retrieve(ctx, query, subject, generationK, generationSources)
	if err != nil {
		return nil, err
	}
	resp := &models.FlashcardResponse{Subject: subject, Query: query, FallbackUsed: res.FallbackUsed, Flashcards: []models.Flashcard{}}

	cards, err := r.flashcards.Generate(ctx, models.StudentInfo{SubjectCode: subject}, res.Context(), numCards)
	if err != nil {
		r.logger.Warn("flashcard generation failed", zap.String("subject", subject), zap.Error(err))
		resp.Warning = "generation failed: " + err.Error()
		return resp, nil
	}
	resp.Flashcards = cards
	return resp, nil
}

// ValidateQuery reports whether query retrieves enough context to generate from.
// Only an invalid subject is returned as an error.
func (r *ragServiceImpl) ValidateQuery(ctx context.Context, subject, query string) (*models.ValidateQueryResponse, error) {
	if err := r.checkSubject(subject); err != nil {
		return nil, err
	}

	res, err := r.retriever.Retrieve(ctx, query, subject, validationK, generationSources)
	switch {
	case errors.Is(err, models.ErrNotIngested):
		return &models.ValidateQueryResponse{
			Valid:      false,
			Reason:     "Subject documents not processed yet",
			Suggestion: "Please upload and process documents first",
		}, nil
	case err != nil:
		return &models.ValidateQueryResponse{
			Valid:      false,
			Reason:     "Error processing query: " + err.Error(),
			Suggestion: "Please try a different query",
		}, nil
	}

	retrieved := res.Context()
	if utf8.RuneCountInString(strings.TrimSpace(retrieved)) < minValidContext {
		return &models.ValidateQueryResponse{
			Valid:      false,
			Reason:     "No relevant content found for this query",
			Suggestion: "Try a broader topic or check if relevant documents are uploaded",
		}, nil
	}
	return &models.ValidateQueryResponse{
		Valid:         true,
		ContextLength: utf8.RuneCountInString(retrieved),
		Message:       "Query looks good for content generation",
	}, nil
}
