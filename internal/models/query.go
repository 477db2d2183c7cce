package models

import (
	"fmt"
	"strings"
)

// SearchQuery is the input for a semantic search.
type SearchQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Validate rejects empty queries. TopK bounds are applied by the retriever.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty: %w", ErrValidation)
	}
	return nil
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Status       string         `json:"status"`
	Query        string         `json:"query"`
	ResultsCount int            `json:"results_count"`
	Results      []*QueryResult `json:"results"`
}

// AnalysisRequest is the input for the research assistant.
type AnalysisRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k"`
	UseContext *bool  `json:"use_context,omitempty"`
}

// ContextEnabled reports whether retrieval should run; it defaults to true when unset.
func (r *AnalysisRequest) ContextEnabled() bool {
	if r.UseContext != nil {
		return *r.UseContext
	}
	return true
}

// Analysis is the assistant's structured answer. Model is nil in degraded mode.
type Analysis struct {
	Query            string  `json:"query"`
	Analysis         string  `json:"analysis"`
	SourceChunksUsed int     `json:"source_chunks_used"`
	TopK             int     `json:"top_k"`
	Model            *string `json:"model"`
}

// Ingestion statuses.
const (
	IngestStatusSuccess = "success"
	IngestStatusWarning = "warning"
)

// IngestResult summarises one ingestion call.
type IngestResult struct {
	Status            string   `json:"status"`
	Message           string   `json:"message"`
	Filename          string   `json:"filename,omitempty"`
	DocumentsIngested int      `json:"documents_ingested"`
	FilesProcessed    int      `json:"files_processed,omitempty"`
	FilesFailed       []string `json:"files_failed,omitempty"`
}
