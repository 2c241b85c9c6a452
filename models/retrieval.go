package models

import "strings"

// RetrievalResult is the outcome of a scoped similarity search.
type RetrievalResult struct {
	Chunks []SourceDocument `json:"chunks"`
	// FallbackUsed is set when the source filter removed every candidate and
	// the unfiltered candidates were returned instead.
	FallbackUsed bool `json:"fallback_used"`
}

// Context joins the retrieved chunk texts with blank lines.
func (r *RetrievalResult) Context() string {
	if r == nil || len(r.Chunks) == 0 {
		return ""
	}
	texts := make([]string, len(r.Chunks))
	for i, c := range r.Chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n")
}
