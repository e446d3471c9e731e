package embed

import (
	"log/slog"
	"strings"

	"github.com/memmcp/memmcp/internal/config"
	"github.com/memmcp/memmcp/internal/errors"
)

// New builds the configured provider adapter, wrapped with the LRU
// cache. A negative cache size disables the cache.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var inner Embedder
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		inner = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, cfg.Dimension, cfg.BatchSize)
	case "cohere":
		inner = NewCohere(cfg.CohereAPIKey, cfg.Model, cfg.Dimension, cfg.BatchSize)
	case "ollama":
		inner = NewOllama(cfg.OllamaHost, cfg.Model, cfg.Dimension)
	case "huggingface":
		inner = NewHuggingFace(cfg.HFAPIKey, cfg.HFBaseURL, cfg.Model, cfg.Dimension, cfg.BatchSize)
	case "litellm":
		inner = NewLiteLLM(cfg.LiteLLMBaseURL, cfg.LiteLLMAPIKey, cfg.Model, cfg.Dimension, cfg.BatchSize)
	default:
		return nil, errors.Newf(errors.KindInvalidArgument,
			"unknown embedding provider %q", cfg.Provider)
	}

	slog.Info("embedder_created",
		"provider", strings.ToLower(cfg.Provider),
		"model", cfg.Model,
		"dimension", cfg.Dimension)

	if cfg.CacheSize < 0 {
		return inner, nil
	}
	return NewCached(inner, cfg.CacheSize), nil
}
