package embedding

import (
	"context"
)

// HashEmbedder is a deterministic bag-of-words embedder. Each word is hashed into
// one of dimensions buckets with a hash-derived sign, so texts sharing vocabulary
// land close together. It needs no model files and is used for tests and offline runs.
type HashEmbedder struct {
	dimensions int
}

var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder returns a hashing embedder of the given dimensions (384 when <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns a unit-length vector for text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	words := SplitWords(text)
	if len(words) == 0 {
		// Keep empty and punctuation-only input off the zero vector.
		emb[int(HashString(text)%uint32(e.dimensions))] = 1
		return emb, nil
	}
	for _, w := range words {
		h := HashString(w)
		sign := float32(1)
		if h&(1<<31) != 0 {
			sign = -1
		}
		emb[int(h%uint32(e.dimensions))] += sign
	}
	if allZero(emb) {
		emb[int(HashString(text)%uint32(e.dimensions))] = 1
	}
	if err := toUnit(emb); err != nil {
		return nil, err
	}
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the provider name.
func (e *HashEmbedder) Model() string {
	return "hash"
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}

func allZero(x []float32) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}
