// Package vectorstore persists embedded chunks per subject and answers
// similarity queries over them.
package vectorstore

import (
	"context"
	"errors"
)

// ErrModelMismatch is returned when an index built with one embedding model is
// searched or appended to with another.
var ErrModelMismatch = errors.New("embedding model does not match index")

// Metadata is attached to every stored chunk.
type Metadata struct {
	SubjectCode string `json:"subject_code"`
	Source      string `json:"source"`
	SourceType  string `json:"source_type"`
	ChunkIndex  int    `json:"chunk_index"`
}

// Record is a chunk ready to be written.
type Record struct {
	ID        string
	Text      string
	Metadata  Metadata
	Embedding []float32
}

// Hit is a search result. Score is cosine similarity, higher is closer.
type Hit struct {
	ID       string
	Text     string
	Metadata Metadata
	Score    float64
}

// Store is a per-subject vector index. Callers serialize writers per subject
// with SubjectLocks.
type Store interface {
	// Replace atomically swaps the subject's index for one holding exactly records.
	Replace(ctx context.Context, subject, modelID string, records []Record) error
	// Append adds records to the subject's index, creating it if needed.
	Append(ctx context.Context, subject, modelID string, records []Record) error
	// Search returns up to n hits ordered by decreasing similarity.
	// A subject with no index yields models.ErrNotIngested.
	Search(ctx context.Context, subject, modelID string, query []float32, n int) ([]Hit, error)
	Count(ctx context.Context, subject string) (int, error)
	Exists(ctx context.Context, subject string) (bool, error)
	Drop(ctx context.Context, subject string) error
	Close() error
}
