// Package assistant produces structured research analyses from retrieved passages,
// using a completion service when one is configured and canned guidance otherwise.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/researchpilot/internal/models"
	"github.com/hyperjump/researchpilot/internal/search"
)

// DefaultTopK is used when a request leaves top_k unset.
const DefaultTopK = 5

// Searcher retrieves ranked passages for a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]*models.QueryResult, error)
}

// Completer is a text completion service.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Assistant answers analysis requests. Its LLM readiness is fixed at construction.
type Assistant struct {
	searcher Searcher
	llm      Completer
	maxTopK  int
	logger   *zap.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assistant) {
		a.logger = logger
	}
}

// WithMaxTopK sets the largest top_k an analysis may request. It should match the
// searcher's bound so the reported top_k is the one actually used.
func WithMaxTopK(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxTopK = n
		}
	}
}

// New creates an assistant. A nil completer puts it in degraded mode for its whole lifetime.
func New(searcher Searcher, completer Completer, opts ...Option) *Assistant {
	a := &Assistant{
		searcher: searcher,
		llm:      completer,
		maxTopK:  search.DefaultMaxTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.llm == nil {
		a.logger.Warn("no completion service configured; analyses will use canned responses")
	} else {
		a.logger.Info("completion service ready", zap.String("model", a.llm.Model()))
	}
	return a
}

// Ready reports whether a completion service is configured.
func (a *Assistant) Ready() bool {
	return a.llm != nil
}

// Model returns the completion model, or nil in degraded mode.
func (a *Assistant) Model() *string {
	if a.llm == nil {
		return nil
	}
	m := a.llm.Model()
	return &m
}

// Analyze retrieves context (unless disabled) and produces a five-section analysis.
// Completion failures are returned wrapped in models.ErrLLM; degraded mode never fails.
func (a *Assistant) Analyze(ctx context.Context, req *models.AnalysisRequest) (*models.Analysis, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query cannot be empty: %w", models.ErrValidation)
	}
	topK := req.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	topK = search.ClampTopK(topK, a.maxTopK)

	var results []*models.QueryResult
	if req.ContextEnabled() {
		var err error
		results, err = a.searcher.Search(ctx, req.Query, topK)
		if err != nil {
			return nil, err
		}
	}

	out := &models.Analysis{
		Query:            req.Query,
		SourceChunksUsed: len(results),
		TopK:             topK,
		Model:            a.Model(),
	}

	if a.llm == nil {
		if len(results) > 0 {
			out.Analysis = fallbackWithSources(len(results))
		} else {
			out.Analysis = fallbackNoSources
		}
		return out, nil
	}

	prompt := BuildPrompt(BuildContext(results), req.Query)
	text, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	out.Analysis = strings.TrimSpace(text)
	a.logger.Info("analysis generated",
		zap.String("query", req.Query),
		zap.Int("source_chunks", len(results)))
	return out, nil
}
