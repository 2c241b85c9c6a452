package models

import "time"

// DocumentOutcome records what happened to a single PDF during ingestion.
type DocumentOutcome struct {
	Source     string   `json:"source"`
	SourceType Category `json:"source_type"`
	Pages      int      `json:"pages"`
	OCRPages   int      `json:"ocr_pages"`
	Chunks     int      `json:"chunks"`
	Error      string   `json:"error,omitempty"`
}

// Failed reports whether the document could not be processed.
func (o DocumentOutcome) Failed() bool { return o.Error != "" }

// IngestionSummary aggregates an ingestion run over one subject.
type IngestionSummary struct {
	Subject    string            `json:"subject"`
	Mode       string            `json:"mode"`
	Documents  []DocumentOutcome `json:"documents"`
	ChunkCount int               `json:"chunk_count"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration_ns"`
}

// FailedCount returns the number of documents that failed.
func (s *IngestionSummary) FailedCount() int {
	n := 0
	for _, d := range s.Documents {
		if d.Failed() {
			n++
		}
	}
	return n
}
