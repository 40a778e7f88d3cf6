// Package config loads runtime configuration from the environment, with a
// .env file honoured for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/docuchat/docuchat/internal/chunker"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/embedding"
	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/storage"
)

// Config carries every tunable the binaries read.
type Config struct {
	// OpenAIAPIKey enables embedding and generation. Empty means the
	// service runs lexical-only with no chat generation.
	OpenAIAPIKey string

	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	VectorDimension  int

	WindowSize int
	Overlap    int

	RetrievalK      int
	MaxContextChars int

	MaxTextChars int
	MaxBatchSize int
	MaxRetries   int
	BaseDelay    time.Duration

	HTTPPort string
	// ServerMode selects HTTP transport for the MCP surface instead of stdio.
	ServerMode bool
}

// Load reads configuration from the environment. A .env file is loaded when
// present and ignored when missing.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantCollection: getEnv("QDRANT_COLLECTION", storage.DefaultCollection),
		VectorDimension:  getEnvInt("VECTOR_DIMENSION", storage.DefaultVectorDimension),
		WindowSize:       getEnvInt("CHUNK_WINDOW_SIZE", chunker.DefaultWindowSize),
		Overlap:          getEnvInt("CHUNK_OVERLAP", chunker.DefaultOverlap),
		RetrievalK:       getEnvInt("RETRIEVAL_K", retrieval.DefaultK),
		MaxContextChars:  getEnvInt("MAX_CONTEXT_CHARS", retrieval.DefaultMaxContextChars),
		MaxTextChars:     getEnvInt("EMBED_MAX_TEXT_CHARS", embedding.DefaultMaxTextChars),
		MaxBatchSize:     getEnvInt("EMBED_MAX_BATCH_SIZE", embedding.DefaultMaxBatchSize),
		MaxRetries:       getEnvInt("EMBED_MAX_RETRIES", embedding.DefaultMaxRetries),
		BaseDelay:        getEnvDuration("EMBED_BASE_DELAY", embedding.DefaultBaseDelay),
		HTTPPort:         getEnv("PORT", "8080"),
		ServerMode:       getEnv("SERVER_MODE", "false") == "true",
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.VectorDimension <= 0 {
		return domain.Configf("VECTOR_DIMENSION must be positive, got %d", c.VectorDimension)
	}
	if c.WindowSize <= 0 || c.Overlap < 0 || c.Overlap >= c.WindowSize {
		return domain.Configf("invalid chunking config: window %d, overlap %d", c.WindowSize, c.Overlap)
	}
	if c.RetrievalK <= 0 {
		return domain.Configf("RETRIEVAL_K must be positive, got %d", c.RetrievalK)
	}
	if c.MaxRetries <= 0 {
		return domain.Configf("EMBED_MAX_RETRIES must be positive, got %d", c.MaxRetries)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
