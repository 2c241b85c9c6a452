package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/itish2003/studyrag/config"
	"github.com/itish2003/studyrag/controller"
	"github.com/itish2003/studyrag/logger"
	"github.com/itish2003/studyrag/metrics"
	"github.com/itish2003/studyrag/services"
	"github.com/itish2003/studyrag/vectorstore"
)

// app holds the wired components shared by every command.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	indexer    *services.IndexingService
	service    services.RAGService
	controller *controller.RAGController

	closers []io.Closer
}

// newApp loads configuration and wires every component. Callers must Close it.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	metrics.Register()

	a := &app{cfg: cfg, logger: log}

	if err := services.SetupPDFLicense(cfg.PDF.LicenseKey); err != nil {
		// Extraction fails per document until a key is configured.
		log.Warn("pdf license not set", zap.Error(err))
	}

	var ocr services.PageOCR
	if !cfg.OCR.Disabled {
		ocr = services.NewOCRService(cfg.OCR, nil, log)
	}
	extractor := services.NewExtractor(services.UniPDFOpener{}, ocr, log)

	chunker, err := services.NewChunker(cfg.Chunking.Size, cfg.Chunking.OverlapChars())
	if err != nil {
		return nil, err
	}

	embedder, err := services.NewEmbedder(ctx, cfg.Embedding, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if c, ok := embedder.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	store, err := newStore(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, store)

	completer, err := services.NewCompleter(ctx, cfg.LLM, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create completer: %w", err)
	}

	files, err := services.NewFileActions(cfg.DataRoot, cfg.AllowedSubjects)
	if err != nil {
		a.Close()
		return nil, err
	}

	locks := vectorstore.NewSubjectLocks()
	a.indexer = services.NewIndexingService(cfg, extractor, chunker, embedder, store, locks, log)
	retriever := services.NewRetrieverService(cfg, embedder, store, locks, log)

	a.service = services.NewRAGService(
		cfg.AllowedSubjects,
		files,
		a.indexer,
		retriever,
		services.NewMCQGenerator(completer, log),
		services.NewFlashcardGenerator(completer, log),
		store,
		log,
	)
	a.controller = controller.NewRAGController(a.service, log)

	log.Info("studyrag ready",
		zap.Strings("subjects", cfg.AllowedSubjects),
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("embedding", embedder.ModelID()),
		zap.String("llm", completer.Name()),
		zap.Bool("ocr", ocr != nil),
	)
	return a, nil
}

func newStore(cfg config.Config, log *zap.Logger) (vectorstore.Store, error) {
	switch cfg.Index.Backend {
	case "chroma":
		return vectorstore.NewChromaStore(cfg.Index.ChromaURL, log)
	default:
		return vectorstore.NewSQLiteStore(cfg.IndexRoot, log)
	}
}

// Close releases the embedder and the store and flushes the logger.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
