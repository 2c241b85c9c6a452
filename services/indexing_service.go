package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itish2003/studyrag/config"
	"github.com/itish2003/studyrag/metrics"
	"github.com/itish2003/studyrag/models"
	"github.com/itish2003/studyrag/vectorstore"
)

const (
	ReingestReplace = "replace"
	ReingestAppend  = "append"
)

// DocumentExtractor turns a PDF on disk into cleaned text.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, path string) (models.ExtractedDocument, error)
}

// IndexingService ingests a subject's PDFs into its vector index.
type IndexingService struct {
	dataRoot     string
	subjects     []string
	reingestMode string
	batchSize    int

	extractor DocumentExtractor
	chunker   *Chunker
	embedder  Embedder
	store     vectorstore.Store
	locks     *vectorstore.SubjectLocks // guards the index against readers
	runs      *vectorstore.SubjectLocks // serializes ingestion runs per subject
	logger    *zap.Logger

	// WatchDebounce is how long the watcher waits for a burst of events to settle.
	WatchDebounce time.Duration
}

// NewIndexingService creates a new indexing service.
func NewIndexingService(
	cfg config.Config,
	extractor DocumentExtractor,
	chunker *Chunker,
	embedder Embedder,
	store vectorstore.Store,
	locks *vectorstore.SubjectLocks,
	logger *zap.Logger,
) *IndexingService {
	return &IndexingService{
		dataRoot:      cfg.DataRoot,
		subjects:      cfg.AllowedSubjects,
		reingestMode:  cfg.Index.ReingestMode,
		batchSize:     cfg.Embedding.BatchSize,
		extractor:     extractor,
		chunker:       chunker,
		embedder:      embedder,
		store:         store,
		locks:         locks,
		runs:          vectorstore.NewSubjectLocks(),
		logger:        logger.Named("indexer"),
		WatchDebounce: 2 * time.Second,
	}
}

func (s *IndexingService) validSubject(subject string) error {
	for _, allowed := range s.subjects {
		if allowed == subject {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", models.ErrInvalidSubject, subject)
}

// IngestSubject extracts, chunks and embeds every PDF of the subject and
// writes the result to the index. A document that fails is recorded in the
// summary and skipped. When no chunk is produced the index is not touched
// and ErrNothingToIndex is returned alongside the summary.
func (s *IndexingService) IngestSubject(ctx context.Context, subject string) (*models.IngestionSummary, error) {
	if err := s.validSubject(subject); err != nil {
		return nil, err
	}

	// Extraction and embedding run without blocking readers; only the index
	// write below excludes them.
	run := s.runs.For(subject)
	run.Lock()
	defer run.Unlock()

	summary := &models.IngestionSummary{
		Subject:   subject,
		Mode:      s.reingestMode,
		StartedAt: time.Now(),
	}
	defer func() {
		summary.Duration = time.Since(summary.StartedAt)
		metrics.IngestionDuration.WithLabelValues(subject).Observe(summary.Duration.Seconds())
	}()

	subjectDir := filepath.Join(s.dataRoot, subject)
	if err := os.MkdirAll(subjectDir, 0o755); err != nil {
		return summary, fmt.Errorf("create subject dir: %w", err)
	}
	s.logger.Info("starting ingestion", zap.String("subject", subject), zap.String("dir", subjectDir))

	var chunks []models.Chunk
	for _, category := range models.AllCategories {
		files, err := listPDFs(filepath.Join(subjectDir, string(category)))
		if err != nil {
			return summary, err
		}
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			outcome, docChunks := s.ingestDocument(ctx, subject, category, path)
			summary.Documents = append(summary.Documents, outcome)
			chunks = append(chunks, docChunks...)
		}
		s.logger.Debug("category loaded", zap.String("subject", subject),
			zap.String("category", string(category)), zap.Int("files", len(files)))
	}

	if len(chunks) == 0 {
		s.logger.Warn("no chunks produced, index left untouched", zap.String("subject", subject),
			zap.Int("documents", len(summary.Documents)))
		return summary, fmt.Errorf("%w: %s", models.ErrNothingToIndex, subject)
	}

	records, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return summary, err
	}

	if err := s.writeIndex(ctx, subject, records); err != nil {
		return summary, fmt.Errorf("write index for %s: %w", subject, err)
	}

	summary.ChunkCount = len(records)
	metrics.ChunksIndexedTotal.WithLabelValues(subject).Add(float64(len(records)))
	s.logger.Info("ingestion complete",
		zap.String("subject", subject),
		zap.Int("documents", len(summary.Documents)),
		zap.Int("failed", summary.FailedCount()),
		zap.Int("chunks", summary.ChunkCount),
		zap.String("mode", s.reingestMode),
	)
	return summary, nil
}

func (s *IndexingService) writeIndex(ctx context.Context, subject string, records []vectorstore.Record) error {
	lock := s.locks.For(subject)
	lock.Lock()
	defer lock.Unlock()

	if s.reingestMode == ReingestAppend {
		return s.store.Append(ctx, subject, s.embedder.ModelID(), records)
	}
	return s.store.Replace(ctx, subject, s.embedder.ModelID(), records)
}

func (s *IndexingService) ingestDocument(ctx context.Context, subject string, category models.Category, path string) (models.DocumentOutcome, []models.Chunk) {
	name := filepath.Base(path)
	outcome := models.DocumentOutcome{Source: name, SourceType: category}

	fail := func(err error) (models.DocumentOutcome, []models.Chunk) {
		s.logger.Error("document failed, skipping", zap.String("subject", subject),
			zap.String("file", name), zap.String("category", string(category)), zap.Error(err))
		metrics.DocumentsIngestedTotal.WithLabelValues(subject, string(category), "failed").Inc()
		outcome.Error = err.Error()
		return outcome, nil
	}

	doc, err := s.extractor.ExtractText(ctx, path)
	if err != nil {
		return fail(err)
	}
	outcome.Pages = doc.Pages
	outcome.OCRPages = doc.OCRPages

	parts, err := s.chunker.Split(doc.Text)
	if err != nil {
		return fail(err)
	}

	chunks := make([]models.Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, models.Chunk{
			ID:          uuid.NewString(),
			Text:        p,
			Source:      name,
			SourceType:  category,
			SubjectCode: subject,
			Index:       i,
		})
	}
	outcome.Chunks = len(chunks)
	metrics.DocumentsIngestedTotal.WithLabelValues(subject, string(category), "ok").Inc()
	s.logger.Info("document processed", zap.String("subject", subject), zap.String("file", name),
		zap.String("category", string(category)), zap.Int("pages", doc.Pages),
		zap.Int("ocr_pages", doc.OCRPages), zap.Int("chunks", len(chunks)))
	return outcome, chunks
}

func (s *IndexingService) embedChunks(ctx context.Context, chunks []models.Chunk) ([]vectorstore.Record, error) {
	batch := s.batchSize
	if batch <= 0 {
		batch = 32
	}
	records := make([]vectorstore.Record, 0, len(chunks))
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("could not embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(texts))
		}
		for i, c := range chunks[start:end] {
			records = append(records, vectorstore.Record{
				ID:   c.ID,
				Text: c.Text,
				Metadata: vectorstore.Metadata{
					SubjectCode: c.SubjectCode,
					Source:      c.Source,
					SourceType:  string(c.SourceType),
					ChunkIndex:  c.Index,
				},
				Embedding: vecs[i],
			})
		}
	}
	return records, nil
}

// listPDFs returns the *.pdf files (any case) directly inside dir, sorted by
// name. A missing dir yields no files.
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && isPDF(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// WatchSubjects watches every subject's category folders and re-ingests a
// subject once PDF changes in it have settled. It blocks until ctx is done.
func (s *IndexingService) WatchSubjects(ctx context.Context) error {
	watcher, dirSubject, err := s.watchSubjectDirs()
	if err != nil {
		return err
	}
	return s.runWatcher(ctx, watcher, dirSubject)
}

// watchSubjectDirs creates every category folder and registers it with a new
// watcher. It returns the watcher and the folder to subject mapping.
func (s *IndexingService) watchSubjectDirs() (*fsnotify.Watcher, map[string]string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirSubject := make(map[string]string)
	for _, subject := range s.subjects {
		for _, category := range models.AllCategories {
			dir := filepath.Join(s.dataRoot, subject, string(category))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				watcher.Close()
				return nil, nil, fmt.Errorf("create %s: %w", dir, err)
			}
			if err := watcher.Add(dir); err != nil {
				watcher.Close()
				return nil, nil, fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			dirSubject[filepath.Clean(dir)] = subject
		}
	}
	s.logger.Info("watching subject folders", zap.Int("dirs", len(dirSubject)))
	return watcher, dirSubject, nil
}

// runWatcher debounces watcher events into re-ingestion runs until ctx is
// done. It closes watcher and waits for any run it started.
func (s *IndexingService) runWatcher(ctx context.Context, watcher *fsnotify.Watcher, dirSubject map[string]string) error {
	defer watcher.Close()

	var (
		mu      sync.Mutex
		timers  = make(map[string]*time.Timer)
		hashes  = make(map[string]string)
		pending sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			if t.Stop() {
				pending.Done()
			}
		}
		mu.Unlock()
		pending.Wait()
	}()

	schedule := func(subject string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[subject]; ok && t.Stop() {
			pending.Done()
		}
		pending.Add(1)
		timers[subject] = time.AfterFunc(s.WatchDebounce, func() {
			defer pending.Done()
			summary, err := s.IngestSubject(ctx, subject)
			switch {
			case errors.Is(err, models.ErrNothingToIndex):
				s.logger.Warn("watcher: nothing to index", zap.String("subject", subject))
			case err != nil:
				s.logger.Error("watcher: re-ingest failed", zap.String("subject", subject), zap.Error(err))
			default:
				s.logger.Info("watcher: re-ingested", zap.String("subject", subject), zap.Int("chunks", summary.ChunkCount))
			}
		})
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isPDF(event.Name) {
				continue
			}
			subject, ok := dirSubject[filepath.Dir(event.Name)]
			if !ok {
				continue
			}
			s.logger.Debug("watcher event", zap.String("event", event.String()))

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				// Editors and uploads fire several writes; skip if the content is unchanged.
				hash, err := calculateFileHash(event.Name)
				if err != nil {
					s.logger.Warn("watcher: could not hash file", zap.String("file", event.Name), zap.Error(err))
					continue
				}
				mu.Lock()
				unchanged := hashes[event.Name] == hash
				hashes[event.Name] = hash
				mu.Unlock()
				if unchanged {
					continue
				}
				schedule(subject)
			} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				mu.Lock()
				delete(hashes, event.Name)
				mu.Unlock()
				schedule(subject)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", zap.Error(err))

		case <-ctx.Done():
			s.logger.Info("context cancelled, shutting down watcher")
			return nil
		}
	}
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
