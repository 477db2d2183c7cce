package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/researchpilot/internal/config"
	"github.com/hyperjump/researchpilot/internal/models"
)

// countingEmbedder records how many texts reach it.
type countingEmbedder struct {
	*HashEmbedder
	seen    []string
	fail    error
	wrongLn bool
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	c.seen = append(c.seen, texts...)
	if c.wrongLn {
		return [][]float32{{1}}, nil
	}
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_OnlyMissesReachInner(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	c := NewCachedEmbedder(inner, "test", 10)
	ctx := context.Background()

	if _, err := c.Embed(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	vecs, err := c.EmbedBatch(ctx, []string{"alpha", "beta", "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	want := []string{"alpha", "beta"}
	if len(inner.seen) != len(want) {
		t.Fatalf("inner saw %v, want %v", inner.seen, want)
	}
	for i := range want {
		if inner.seen[i] != want[i] {
			t.Errorf("inner saw %v, want %v", inner.seen, want)
			break
		}
	}
	if vecs[0][0] != vecs[2][0] {
		t.Error("same text should give same vector")
	}
}

func TestCachedEmbedder_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	c := NewCachedEmbedder(&countingEmbedder{HashEmbedder: NewHashEmbedder(4), fail: boom}, "test", 10)
	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("expected inner error, got %v", err)
	}
}

func TestCachedEmbedder_RejectsWrongDimensions(t *testing.T) {
	c := NewCachedEmbedder(&countingEmbedder{HashEmbedder: NewHashEmbedder(4), wrongLn: true}, "test", 10)
	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, models.ErrEmbedding) {
		t.Errorf("expected ErrEmbedding, got %v", err)
	}
}

func TestNew_Providers(t *testing.T) {
	e, err := New(&config.EmbeddingConfig{Provider: config.ProviderHash, Dimensions: 32, CacheSize: 10}, nil)
	if err != nil {
		t.Fatalf("hash provider: %v", err)
	}
	if e.Dimensions() != 32 || e.Model() != "hash" {
		t.Errorf("dims=%d model=%q", e.Dimensions(), e.Model())
	}
	_ = e.Close()

	e, err = New(&config.EmbeddingConfig{Provider: config.ProviderOpenAI, Model: "text-embedding-3-small", Dimensions: 1536, APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("openai provider: %v", err)
	}
	if e.Model() != "text-embedding-3-small" {
		t.Errorf("model=%q", e.Model())
	}

	if _, err := New(&config.EmbeddingConfig{Provider: "bogus"}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNew_ONNXMissingModel(t *testing.T) {
	_, err := New(&config.EmbeddingConfig{
		Provider:   config.ProviderONNX,
		ModelPath:  "/nonexistent/model.onnx",
		Dimensions: 384,
		MaxTokens:  16,
	}, nil)
	if err == nil {
		t.Error("expected error when the ONNX model cannot be loaded")
	}
}
