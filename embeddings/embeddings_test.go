package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claimsight/claimsight/config"
)

func testConfig(apiKey string) config.Config {
	cfg := config.Config{OpenAIAPIKey: apiKey}
	cfg.Embeddings.Dimension = 4
	cfg.Embeddings.OpenAIModel = "text-embedding-3-small"
	cfg.Embeddings.OllamaModel = "nomic-embed-text"
	return cfg
}

func TestNewEmbedderSelectsProviderByCredentials(t *testing.T) {
	hosted, err := NewEmbedder(testConfig("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := hosted.(*openAIEmbedder); !ok {
		t.Fatalf("expected hosted embedder with API key, got %T", hosted)
	}

	local, err := NewEmbedder(testConfig(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := local.(*ollamaEmbedder); !ok {
		t.Fatalf("expected local embedder without API key, got %T", local)
	}
}

func TestNewEmbedderRejectsNonPositiveDimension(t *testing.T) {
	cfg := testConfig("")
	cfg.Embeddings.Dimension = 0
	if _, err := NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestOllamaEmbedBatchPreservesOrder(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		calls = append(calls, req.Prompt)

		// Encode the call order into the first component.
		vec := []float64{float64(len(calls)), 0, 0, 0}
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: vec})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{Model: "test", Dimension: 4, OllamaHost: server.URL})

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[1][0] != 2 {
		t.Fatalf("vectors out of order: %v", vectors)
	}
	if calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("prompts out of order: %v", calls)
	}
}

func TestOllamaEmbedBatchRejectsDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{1, 2}})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{Model: "test", Dimension: 4, OllamaHost: server.URL})

	if _, err := embedder.EmbedBatch(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
