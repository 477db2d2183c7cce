package indexer

import (
	"strings"
	"testing"

	"github.com/hyperjump/researchpilot/internal/models"
)

func BenchmarkChunker_Chunk(b *testing.B) {
	c, _ := NewChunker(1000, 200)
	text := strings.Repeat("Transformers replace recurrence with self attention over tokens. ", 2000)
	meta := models.ChunkMetadata{Source: "paper.pdf", FilePath: "/data/paper.pdf", DocumentType: models.DocumentTypePDF}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Chunk(text, meta)
	}
}
