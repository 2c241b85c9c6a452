package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/itish2003/studyrag/config"
	"github.com/itish2003/studyrag/metrics"
	"github.com/itish2003/studyrag/models"
	"github.com/itish2003/studyrag/vectorstore"
)

// RetrieverService runs scoped similarity search over a subject's index.
type RetrieverService struct {
	subjects   []string
	candidates int
	defaultK   int

	embedder Embedder
	store    vectorstore.Store
	locks    *vectorstore.SubjectLocks
	logger   *zap.Logger
}

func NewRetrieverService(cfg config.Config, embedder Embedder, store vectorstore.Store, locks *vectorstore.SubjectLocks, logger *zap.Logger) *RetrieverService {
	return &RetrieverService{
		subjects:   cfg.AllowedSubjects,
		candidates: cfg.Retrieval.Candidates,
		defaultK:   cfg.Retrieval.DefaultK,
		embedder:   embedder,
		store:      store,
		locks:      locks,
		logger:     logger.Named("retriever"),
	}
}

// Retrieve returns up to k chunks of the subject closest to query. When
// sources is non-empty only chunks of those categories are kept; if that
// leaves nothing the unfiltered candidates are used and FallbackUsed is set.
func (r *RetrieverService) Retrieve(ctx context.Context, query, subject string, k int, sources []models.Category) (*models.RetrievalResult, error) {
	if !slices.Contains(r.subjects, subject) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidSubject, subject)
	}
	if k <= 0 {
		k = r.defaultK
	}
	candidates := max(r.candidates, k)

	lock := r.locks.For(subject)
	lock.RLock()
	defer lock.RUnlock()

	ingested, err := r.store.Exists(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("check index for %s: %w", subject, err)
	}
	if !ingested {
		return nil, fmt.Errorf("%w: %s", models.ErrNotIngested, subject)
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}
	hits, err := r.store.Search(ctx, subject, r.embedder.ModelID(), vec, candidates)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", subject, err)
	}

	result := &models.RetrievalResult{}
	selected := hits
	if len(sources) > 0 {
		selected = make([]vectorstore.Hit, 0, len(hits))
		for _, h := range hits {
			if slices.Contains(sources, models.Category(h.Metadata.SourceType)) {
				selected = append(selected, h)
			}
		}
		if len(selected) == 0 {
			r.logger.Warn("no matches for sources, retrying without filter",
				zap.String("subject", subject), zap.Any("sources", sources))
			selected = hits
			result.FallbackUsed = true
		}
	}
	if len(selected) > k {
		selected = selected[:k]
	}

	result.Chunks = make([]models.SourceDocument, len(selected))
	for i, h := range selected {
		result.Chunks[i] = models.SourceDocument{
			Text:       h.Text,
			Source:     h.Metadata.Source,
			SourceType: h.Metadata.SourceType,
			ChunkIndex: h.Metadata.ChunkIndex,
			Score:      h.Score,
		}
	}

	metrics.RetrievalsTotal.WithLabelValues(subject, strconv.FormatBool(result.FallbackUsed)).Inc()
	r.logger.Debug("retrieved", zap.String("subject", subject), zap.Int("candidates", len(hits)),
		zap.Int("returned", len(result.Chunks)), zap.Bool("fallback", result.FallbackUsed))
	return result, nil
}

// GetContextScoped returns the retrieved chunk texts joined by blank lines.
func (r *RetrieverService) GetContextScoped(ctx context.Context, query, subject string, k int, sources []models.Category) (string, error) {
	res, err := r.Retrieve(ctx, query, subject, k, sources)
	if err != nil {
		return "", err
	}
	return res.Context(), nil
}
