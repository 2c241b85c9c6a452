package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itish2003/studyrag/config"
	"github.com/itish2003/studyrag/models"
	"github.com/itish2003/studyrag/vectorstore"
)

func testConfig(dataRoot string) config.Config {
	cfg := config.Config{DataRoot: dataRoot, IndexRoot: dataRoot + "-index"}
	cfg.ApplyDefaults()
	return cfg
}

func hitsOf(types ...string) []vectorstore.Hit {
	hits := make([]vectorstore.Hit, len(types))
	for i, st := range types {
		hits[i] = vectorstore.Hit{
			ID:       fmt.Sprintf("h%d", i),
			Text:     fmt.Sprintf("chunk %d (%s)", i, st),
			Metadata: vectorstore.Metadata{SourceType: st, Source: st + ".pdf"},
			Score:    1 - float64(i)/100,
		}
	}
	return hits
}

func newTestRetriever(store vectorstore.Store) *RetrieverService {
	return NewRetrieverService(testConfig("data"), &hashEmbedder{}, store, vectorstore.NewSubjectLocks(), zap.NewNop())
}

func TestRetrieve_FilterKeepsSimilarityOrder(t *testing.T) {
	store := &stubStore{exists: true, hits: hitsOf("notes", "past_papers", "syllabus", "notes", "syllabus", "notes")}
	r := newTestRetriever(store)

	res, err := r.Retrieve(context.Background(), "q", "CS3491", 3, []models.Category{models.CategoryNotes, models.CategorySyllabus})
	require.NoError(t, err)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, 20, store.searchN)

	require.Len(t, res.Chunks, 3)
	assert.Equal(t, "chunk 0 (notes)", res.Chunks[0].Text)
	assert.Equal(t, "chunk 2 (syllabus)", res.Chunks[1].Text)
	assert.Equal(t, "chunk 3 (notes)", res.Chunks[2].Text)
	assert.Equal(t, "chunk 0 (notes)\n\nchunk 2 (syllabus)\n\nchunk 3 (notes)", res.Context())
}

func TestRetrieve_FallbackWhenFilterEmpty(t *testing.T) {
	store := &stubStore{exists: true, hits: hitsOf("past_papers", "past_papers", "past_papers", "past_papers")}
	r := newTestRetriever(store)

	res, err := r.Retrieve(context.Background(), "q", "CS3491", 2, []models.Category{models.CategorySyllabus})
	require.NoError(t, err)
	assert.True(t, res.FallbackUsed)
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "chunk 0 (past_papers)", res.Chunks[0].Text)
	assert.Equal(t, "chunk 1 (past_papers)", res.Chunks[1].Text)
}

func TestRetrieve_NoFilterAndDefaultK(t *testing.T) {
	store := &stubStore{exists: true, hits: hitsOf("a", "b", "c", "d", "e", "f", "g", "h")}
	r := newTestRetriever(store)

	res, err := r.Retrieve(context.Background(), "q", "CS3491", 0, nil)
	require.NoError(t, err)
	assert.False(t, res.FallbackUsed)
	assert.Len(t, res.Chunks, 6)
}

func TestRetrieve_FewerHitsThanK(t *testing.T) {
	store := &stubStore{exists: true, hits: hitsOf("notes")}
	r := newTestRetriever(store)

	res, err := r.Retrieve(context.Background(), "q", "CS3491", 5, nil)
	require.NoError(t, err)
	assert.Len(t, res.Chunks, 1)
}

func TestRetrieve_Errors(t *testing.T) {
	r := newTestRetriever(&stubStore{exists: false})

	_, err := r.Retrieve(context.Background(), "q", "XX9999", 3, nil)
	assert.ErrorIs(t, err, models.ErrInvalidSubject)

	_, err = r.Retrieve(context.Background(), "q", "CS3491", 3, nil)
	assert.ErrorIs(t, err, models.ErrNotIngested)

	_, err = r.GetContextScoped(context.Background(), "q", "CS3491", 3, nil)
	assert.ErrorIs(t, err, models.ErrNotIngested)
}
