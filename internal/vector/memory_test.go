package vector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/researchpilot/internal/models"
)

func TestMemoryIndex_UpsertSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := idx.Upsert(ctx, []string{"a", "b", "c"}, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{2, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || math.Abs(results[0].Distance) > 1e-6 {
		t.Errorf("top result = %+v, want a at distance 0", results[0])
	}
	if results[1].ID != "b" || results[1].Distance <= results[0].Distance {
		t.Errorf("second result = %+v", results[1])
	}
}

func TestMemoryIndex_DistanceRange(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []string{"same", "orth", "opp"}, [][]float32{{1, 0}, {0, 1}, {-1, 0}})
	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{"same": 0, "orth": 1, "opp": 2}
	for _, r := range results {
		if math.Abs(r.Distance-want[r.ID]) > 1e-6 {
			t.Errorf("%s distance = %f, want %f", r.ID, r.Distance, want[r.ID])
		}
	}
}

func TestMemoryIndex_UpsertReplaces(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []string{"x"}, [][]float32{{1, 0}})
	_ = idx.Upsert(ctx, []string{"x"}, [][]float32{{0, 1}})
	if idx.Size() != 1 {
		t.Fatalf("expected size 1 after re-upsert, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if results[0].Distance > 1e-6 {
		t.Errorf("vector was not replaced: %+v", results[0])
	}
}

func TestMemoryIndex_Remove(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []string{"x", "y", "z"}, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	if err := idx.Remove(ctx, []string{"x", "missing"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Errorf("expected size 2, got %d", idx.Size())
	}
	// Positions are rebuilt, so upserting z still replaces rather than appends.
	_ = idx.Upsert(ctx, []string{"z"}, [][]float32{{1, 0}})
	if idx.Size() != 2 {
		t.Errorf("expected size 2 after upsert, got %d", idx.Size())
	}
}

func TestMemoryIndex_Reset(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []string{"x"}, [][]float32{{1, 0}})
	idx.Reset()
	if idx.Size() != 0 {
		t.Errorf("expected empty index, got %d", idx.Size())
	}
	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	if err != nil || len(results) != 0 {
		t.Errorf("search after reset = %v, %v", results, err)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	err := idx.Upsert(ctx, []string{"a"}, [][]float32{{1, 0}})
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("Upsert error = %v, want ErrDimensionMismatch", err)
	}
	if idx.Size() != 0 {
		t.Error("failed upsert must not store anything")
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("Search error = %v, want ErrDimensionMismatch", err)
	}
}

func TestMemoryIndex_LengthMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Upsert(context.Background(), []string{"a", "b"}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected error for ids/vectors length mismatch")
	}
}

func TestMemoryIndex_ZeroVector(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []string{"zero"}, [][]float32{{0, 0}})
	results, err := idx.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Distance != 1 {
		t.Errorf("zero vector distance = %f, want 1", results[0].Distance)
	}
}

func TestNewMemoryIndex_InvalidDimension(t *testing.T) {
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimension")
	}
}
