// Package llm provides the generative backend used to synthesise answers.
// Two implementations exist, a hosted API and a locally served model; the
// variant is picked once at startup and callers only see Generate.
package llm

import (
	"context"

	"github.com/claimsight/claimsight/config"
)

const systemPrompt = "You are a helpful assistant for insurance claim analysis."

// Client generates a completion for a single prompt. Implementations may
// fail; callers are expected to degrade rather than abort.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewClient selects the backend: the hosted API when an API key is
// configured, the local model otherwise.
func NewClient(cfg config.Config) Client {
	if cfg.OpenAIAPIKey != "" {
		return NewOpenAIClient(Options{
			Model:         cfg.LLM.OpenAIModel,
			Temperature:   cfg.LLM.Temperature,
			MaxTokens:     cfg.LLM.MaxTokens,
			OpenAIAPIKey:  cfg.OpenAIAPIKey,
			OpenAIBaseURL: cfg.OpenAIBaseURL,
		})
	}

	return NewOllamaClient(Options{
		Model:       cfg.LLM.OllamaModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		OllamaHost:  cfg.OllamaHost,
	})
}
