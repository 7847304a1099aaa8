package models

// SearchMatch is one hit of a semantic search
type SearchMatch struct {
	EmailID  string  `json:"email_id"`
	ThreadID string  `json:"thread_id"`
	Score    float64 `json:"score"`
}

// SearchResult is the answer and hit list of a semantic search
type SearchResult struct {
	Query   string        `json:"query"`
	Answer  string        `json:"answer"`
	Matches []SearchMatch `json:"matches"`
}

// IndexResult reports a semantic index rebuild
type IndexResult struct {
	Status  string `json:"status"`
	Indexed int    `json:"indexed"`
}
