package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for _, c := range AllCategories {
		got, err := ParseCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCategory("slides")
	assert.True(t, errors.Is(err, ErrInvalidCategory))

	_, err = ParseCategory("Notes")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestRetrievalResultContext(t *testing.T) {
	var nilResult *RetrievalResult
	assert.Equal(t, "", nilResult.Context())

	r := &RetrievalResult{Chunks: []SourceDocument{{Text: "alpha"}, {Text: "beta"}}}
	assert.Equal(t, "alpha\n\nbeta", r.Context())
}

func TestIngestionSummaryFailedCount(t *testing.T) {
	s := &IngestionSummary{Documents: []DocumentOutcome{
		{Source: "a.pdf"},
		{Source: "b.pdf", Error: "broken xref"},
		{Source: "c.pdf", Error: "ocr timeout"},
	}}
	assert.Equal(t, 2, s.FailedCount())
}
