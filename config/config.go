// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	BackendFlat     = "flat"
	BackendPostgres = "postgres"
)

type ChunkingConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
}

type EmbeddingConfig struct {
	Dimension   int
	OpenAIModel string
	OllamaModel string
}

type LLMConfig struct {
	OpenAIModel string
	OllamaModel string
	Temperature float32
	MaxTokens   int
}

type Config struct {
	HTTPAddr string
	DataDir  string

	Chunking   ChunkingConfig
	Embeddings EmbeddingConfig
	LLM        LLMConfig

	TopK int

	VectorBackend string
	IndexPath     string
	MetadataPath  string
	PostgresDSN   string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaHost    string
}

// Load reads configuration from the environment, honouring a local .env
// file when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		DataDir:  getEnv("DATA_DIR", "data"),
		Chunking: ChunkingConfig{
			ChunkSize:    getEnvInt("CHUNK_SIZE", 250),
			ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 50),
			MinChunkSize: getEnvInt("MIN_CHUNK_SIZE", 100),
		},
		Embeddings: EmbeddingConfig{
			Dimension:   getEnvInt("EMBEDDING_DIM", 768),
			OpenAIModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			OllamaModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		},
		LLM: LLMConfig{
			OpenAIModel: getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			OllamaModel: getEnv("OLLAMA_MODEL", "llama2"),
			Temperature: 0.1,
			MaxTokens:   500,
		},
		TopK:          getEnvInt("TOP_K", 5),
		VectorBackend: getEnv("VECTOR_BACKEND", BackendFlat),
		IndexPath:     getEnv("INDEX_PATH", "data/vector_db/index.bin"),
		MetadataPath:  getEnv("METADATA_PATH", "data/vector_db/metadata.json"),
		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/claimsight?sslmode=disable"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OllamaHost:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
