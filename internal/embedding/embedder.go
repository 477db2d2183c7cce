// Package embedding turns text into fixed-length vectors via ONNX, an OpenAI-compatible API,
// or a deterministic hashing model, with an LRU cache in front.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations are safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
	Close() error
}
