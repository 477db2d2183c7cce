// Package vector provides an in-memory cosine-distance index over record vectors.
package vector

import "context"

// Index defines vector storage and nearest-neighbour search by cosine distance.
type Index interface {
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Reset()
	Size() int
	Dimensions() int
}

// Result is a single search hit. Distance is 1 - cosine similarity, so 0 is identical.
type Result struct {
	ID       string
	Distance float64
}
