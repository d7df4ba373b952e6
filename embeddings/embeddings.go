// Package embeddings maps text to fixed-dimension dense vectors via a
// pluggable provider.
package embeddings

import (
	"context"
	"fmt"

	"github.com/claimsight/claimsight/config"
)

// Embedder is a pure text-to-vector function boundary. EmbedBatch output
// row i corresponds to input text i.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewEmbedder selects the provider once at startup: the hosted API when an
// API key is configured, the local model otherwise.
func NewEmbedder(cfg config.Config) (Embedder, error) {
	if cfg.Embeddings.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Embeddings.Dimension)
	}

	if cfg.OpenAIAPIKey != "" {
		return NewOpenAIEmbedder(Options{
			Model:         cfg.Embeddings.OpenAIModel,
			Dimension:     cfg.Embeddings.Dimension,
			OpenAIAPIKey:  cfg.OpenAIAPIKey,
			OpenAIBaseURL: cfg.OpenAIBaseURL,
		}), nil
	}

	return NewOllamaEmbedder(Options{
		Model:      cfg.Embeddings.OllamaModel,
		Dimension:  cfg.Embeddings.Dimension,
		OllamaHost: cfg.OllamaHost,
	}), nil
}
