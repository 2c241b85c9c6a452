package services

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/itish2003/studyrag/vectorstore"
)

const fakeDim = 64

// hashEmbedder is a deterministic bag-of-words embedder: each lowercased word
// increments one of fakeDim buckets.
type hashEmbedder struct {
	calls int
	err   error
}

func (e *hashEmbedder) vector(text string) []float32 {
	v := make([]float32, fakeDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%fakeDim]++
	}
	return v
}

func (e *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return firstVector(e.EmbedDocuments(ctx, []string{text}))
}

func (e *hashEmbedder) ModelID() string { return "test/hash-bow" }

// stubStore returns fixed hits in the given order.
type stubStore struct {
	hits      []vectorstore.Hit
	exists    bool
	searchN   int
	appended  int
	replaced  int
	searchErr error
}

func (s *stubStore) Replace(_ context.Context, _, _ string, records []vectorstore.Record) error {
	s.replaced += len(records)
	s.exists = true
	return nil
}

func (s *stubStore) Append(_ context.Context, _, _ string, records []vectorstore.Record) error {
	s.appended += len(records)
	s.exists = true
	return nil
}

func (s *stubStore) Search(_ context.Context, _, _ string, _ []float32, n int) ([]vectorstore.Hit, error) {
	s.searchN = n
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if len(s.hits) > n {
		return s.hits[:n], nil
	}
	return s.hits, nil
}

func (s *stubStore) Count(context.Context, string) (int, error) { return len(s.hits), nil }

func (s *stubStore) Exists(context.Context, string) (bool, error) { return s.exists, nil }

func (s *stubStore) Drop(context.Context, string) error {
	s.exists = false
	return nil
}

func (s *stubStore) Close() error { return nil }

var errEmbedDown = errors.New("embedding server unavailable")
