// Package search turns a text query into ranked passages from a collection.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/hyperjump/researchpilot/internal/embedding"
	"github.com/hyperjump/researchpilot/internal/metrics"
	"github.com/hyperjump/researchpilot/internal/models"
)

// DefaultMaxTopK is the upper bound applied to top_k when none is configured.
const DefaultMaxTopK = 20

// Index is the subset of a collection the retriever reads from.
type Index interface {
	Query(ctx context.Context, embedding []float32, k int) ([]models.Neighbor, error)
	Count() int
}

// Retriever embeds queries and ranks the nearest stored chunks.
type Retriever struct {
	embedder embedding.Embedder
	index    Index
	maxTopK  int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// WithMaxTopK sets the upper bound for top_k.
func WithMaxTopK(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.maxTopK = n
		}
	}
}

// NewRetriever creates a retriever over index using embedder for queries.
func NewRetriever(embedder embedding.Embedder, index Index, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		index:    index,
		maxTopK:  DefaultMaxTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ClampTopK bounds k to [1, max].
func ClampTopK(k, max int) int {
	if k < 1 {
		return 1
	}
	if k > max {
		return max
	}
	return k
}

// Search returns up to topK results ranked by similarity, rank 1 first.
// topK is clamped to [1, maxTopK]. An empty collection yields an empty, non-nil slice.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]*models.QueryResult, error) {
	q := &models.SearchQuery{Query: query, TopK: topK}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	topK = ClampTopK(topK, r.maxTopK)

	vec, err := r.embedQuery(ctx, query)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	count := r.index.Count()
	if count == 0 {
		metrics.SearchRequestsTotal.WithLabelValues("empty").Inc()
		return []*models.QueryResult{}, nil
	}
	if topK > count {
		topK = count
	}

	neighbors, err := r.index.Query(ctx, vec, topK)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	results := make([]*models.QueryResult, len(neighbors))
	for i, n := range neighbors {
		results[i] = &models.QueryResult{
			Rank:       i + 1,
			Document:   n.Text,
			Similarity: round4(1 - n.Distance),
			Distance:   round4(n.Distance),
			Metadata:   n.Metadata,
		}
	}
	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
	r.logger.Debug("search completed",
		zap.String("query", query),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)))
	return results, nil
}

// embedQuery retries once on an embedding failure.
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil && errors.Is(err, models.ErrEmbedding) && ctx.Err() == nil {
		r.logger.Warn("query embedding failed, retrying", zap.Error(err))
		vec, err = r.embedder.Embed(ctx, query)
	}
	if err != nil {
		if !errors.Is(err, models.ErrEmbedding) && ctx.Err() == nil {
			err = fmt.Errorf("embed query: %w: %w", models.ErrEmbedding, err)
		}
		return nil, err
	}
	return vec, nil
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
