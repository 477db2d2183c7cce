package models

import "time"

// IndexRecord is one persisted entry of a collection.
type IndexRecord struct {
	ID        string                 `json:"id" db:"id"`
	Embedding []float32              `json:"-" db:"-"`
	Text      string                 `json:"text" db:"text"`
	Metadata  map[string]interface{} `json:"metadata" db:"-"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// Neighbor is a raw nearest-neighbour hit from a collection, closest first.
type Neighbor struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
	Distance float64
}

// QueryResult is a ranked retrieval hit. It is derived per query and never persisted.
type QueryResult struct {
	Rank       int                    `json:"rank"`
	Document   string                 `json:"document"`
	Similarity float64                `json:"similarity"`
	Distance   float64                `json:"distance"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CollectionStats is a read-only projection of a collection's state.
type CollectionStats struct {
	CollectionName     string `json:"collection_name"`
	DocumentCount      int    `json:"document_count"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	DBPath             string `json:"db_path"`
}
