package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/researchpilot/internal/config"
)

// New builds the embedder selected by cfg.Provider, wrapped in a cache.
// Failure to construct the provider is returned as is; there is no silent fallback.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var inner Embedder
	switch cfg.Provider {
	case config.ProviderONNX:
		e, err := NewONNXEmbedder(cfg.Model, cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		inner = e
	case config.ProviderOpenAI:
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Logger:     logger,
		})
	case config.ProviderHash:
		inner = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (supported: onnx, openai, hash)", cfg.Provider)
	}
	logger.Info("embedding model loaded",
		zap.String("provider", cfg.Provider),
		zap.String("model", inner.Model()),
		zap.Int("dimensions", inner.Dimensions()))
	return NewCachedEmbedder(inner, cfg.Provider, cfg.CacheSize), nil
}
