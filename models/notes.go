package models

// Document is a PDF being ingested. It only lives for the duration of an ingestion run.
type Document struct {
	Filename string   `json:"filename"`
	Path     string   `json:"path"`
	Subject  string   `json:"subject"`
	Category Category `json:"category"`
	Text     string   `json:"text,omitempty"`
}

// ExtractedDocument is the result of running a PDF through the extractor.
type ExtractedDocument struct {
	Text     string `json:"text"`
	Pages    int    `json:"pages"`
	OCRPages int    `json:"ocr_pages"`
}

// Chunk is one slice of a document's cleaned text, ready to embed.
type Chunk struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Source      string   `json:"source"`
	SourceType  Category `json:"source_type"`
	SubjectCode string   `json:"subject_code"`
	Index       int      `json:"chunk_index"`
}

// SourceDocument is a retrieved chunk as returned to API callers.
type SourceDocument struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	SourceType string  `json:"source_type"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score,omitempty"`
}
