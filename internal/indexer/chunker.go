// Package indexer provides document chunking and ingestion into a collection.
package indexer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/researchpilot/internal/models"
)

// Chunker splits text into overlapping character windows that prefer word boundaries.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// chunkOverlap must be in [0, chunkSize).
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits text into chunks carrying base metadata and a sequential chunk index.
//
// Each window spans chunkSize characters. When a window ends before the text does,
// it is cut back to its last space, but only if that space lies past the window's
// midpoint. The next window starts chunkOverlap characters before the previous
// window's unclamped end, and the loop runs until that start passes the text.
// Blank windows are dropped and chunk text is trimmed.
func (c *Chunker) Chunk(text string, base models.ChunkMetadata) []models.Chunk {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)
	if n <= c.chunkSize {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		meta := base
		meta.ChunkIndex = 0
		return []models.Chunk{{Text: trimmed, Metadata: meta, Start: 0, End: n}}
	}

	var chunks []models.Chunk
	for start := 0; start < n; {
		end := start + c.chunkSize
		if end < n {
			if space := lastSpace(runes[start:end]); space > c.chunkSize/2 {
				end = start + space
			}
		}
		stop := min(end, n)
		if trimmed := strings.TrimSpace(string(runes[start:stop])); trimmed != "" {
			meta := base
			meta.ChunkIndex = len(chunks)
			chunks = append(chunks, models.Chunk{Text: trimmed, Metadata: meta, Start: start, End: stop})
		}
		// end is not clamped, so the tail past the last full window still gets
		// its own overlapping chunk.
		next := end - c.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastSpace returns the index of the last ' ' in window, or -1.
func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' {
			return i
		}
	}
	return -1
}
