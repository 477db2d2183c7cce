package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/researchpilot/internal/metrics"
	"github.com/hyperjump/researchpilot/internal/models"
)

// CachedEmbedder puts an LRU cache and request metrics in front of another Embedder.
type CachedEmbedder struct {
	inner    Embedder
	cache    *EmbeddingCache
	provider string
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner. provider labels the emitted metrics.
func NewCachedEmbedder(inner Embedder, provider string, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	return &CachedEmbedder{
		inner:    inner,
		cache:    NewEmbeddingCache(cacheSize),
		provider: provider,
	}
}

// Embed returns the cached vector for text or computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch serves cache hits directly and sends only the misses to the wrapped embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(text); ok {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			out[i] = vec
			continue
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	start := time.Now()
	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	metrics.EmbeddingRequestDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts: %w", len(vecs), len(missTexts), models.ErrEmbedding)
	}
	dim := c.inner.Dimensions()
	for j, vec := range vecs {
		if dim > 0 && len(vec) != dim {
			metrics.EmbeddingRequestsTotal.WithLabelValues(c.provider, "error").Inc()
			return nil, fmt.Errorf("embedding has %d dimensions, expected %d: %w", len(vec), dim, models.ErrEmbedding)
		}
		c.cache.Set(missTexts[j], vec)
		out[missIdx[j]] = vec
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(c.provider, "success").Inc()
	return out, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Model returns the wrapped embedder's model name.
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Close closes the wrapped embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}
