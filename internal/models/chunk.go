// Package models defines core data structures for chunks, index records, query results, and analyses.
package models

// Document types recorded in chunk metadata.
const (
	DocumentTypePDF  = "pdf"
	DocumentTypeXLSX = "xlsx"
	DocumentTypeText = "text"
)

// Metadata keys shared by chunks and index records.
const (
	MetaSource       = "source"
	MetaFilePath     = "file_path"
	MetaDocumentType = "document_type"
	MetaChunkIndex   = "chunk_index"
)

// ChunkMetadata is the positional metadata attached to every chunk.
type ChunkMetadata struct {
	Source       string `json:"source"`
	FilePath     string `json:"file_path"`
	DocumentType string `json:"document_type"`
	ChunkIndex   int    `json:"chunk_index"`
}

// Map returns the metadata as a generic map for storage in an index record.
func (m ChunkMetadata) Map() map[string]interface{} {
	return map[string]interface{}{
		MetaSource:       m.Source,
		MetaFilePath:     m.FilePath,
		MetaDocumentType: m.DocumentType,
		MetaChunkIndex:   m.ChunkIndex,
	}
}

// Chunk is a bounded segment of one document's text. Chunks are never mutated after creation.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	// Start and End are the character offsets of the untrimmed window in the source text.
	Start int `json:"-"`
	End   int `json:"-"`
}
