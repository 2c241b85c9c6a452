package models

// SubjectsResponse lists the configured subjects.
type SubjectsResponse struct {
	Subjects []string `json:"subjects"`
}

type UploadResponse struct {
	Message  string `json:"message"`
	Path     string `json:"path"`
	Category string `json:"category"`
}

type IngestResponse struct {
	Message string            `json:"message"`
	Summary *IngestionSummary `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type MCQResponse struct {
	Subject      string `json:"subject"`
	Query        string `json:"query"`
	MCQs         []MCQ  `json:"mcqs"`
	FallbackUsed bool   `json:"fallback_used"`
	Warning      string `json:"warning,omitempty"`
}

type FlashcardResponse struct {
	Subject      string      `json:"subject"`
	Query        string      `json:"query"`
	Flashcards   []Flashcard `json:"flashcards"`
	FallbackUsed bool        `json:"fallback_used"`
	Warning      string      `json:"warning,omitempty"`
}

// SubjectStatus describes what is on disk and in the index for a subject.
type SubjectStatus struct {
	Subject    string              `json:"subject"`
	IsIngested bool                `json:"is_ingested"`
	Chunks     int                 `json:"chunks"`
	Files      map[string][]string `json:"files"`
	TotalFiles int                 `json:"total_files"`
}

type RetrieveResponse struct {
	Subject      string           `json:"subject"`
	Query        string           `json:"query"`
	Chunks       []SourceDocument `json:"chunks"`
	FallbackUsed bool             `json:"fallback_used"`
}

// ValidateQueryResponse reports whether a query has enough context to generate from.
type ValidateQueryResponse struct {
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
	Suggestion    string `json:"suggestion,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
	Message       string `json:"message,omitempty"`
}
