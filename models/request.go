package models

// GenerateRequest carries the query parameters of the generation endpoints.
type GenerateRequest struct {
	Query    string `form:"query" binding:"required"`
	NumCards int    `form:"num_cards"`
}

// RetrieveRequest carries the query parameters of GET /retrieve/:subject.
type RetrieveRequest struct {
	Query   string `form:"query" binding:"required"`
	K       int    `form:"k"`
	Sources string `form:"sources"` // comma separated categories
}

// ValidateQueryRequest carries the query parameter of the validation endpoint.
type ValidateQueryRequest struct {
	Query string `form:"query" binding:"required"`
}
