package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/docuchat/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.QdrantHost)
	assert.Equal(t, 6334, cfg.QdrantPort)
	assert.Equal(t, 1536, cfg.VectorDimension)
	assert.Equal(t, 1000, cfg.WindowSize)
	assert.Equal(t, 200, cfg.Overlap)
	assert.Equal(t, 5, cfg.RetrievalK)
	assert.Equal(t, 500*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.False(t, cfg.ServerMode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_PORT", "7000")
	t.Setenv("CHUNK_WINDOW_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("EMBED_BASE_DELAY", "2s")
	t.Setenv("SERVER_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal", cfg.QdrantHost)
	assert.Equal(t, 7000, cfg.QdrantPort)
	assert.Equal(t, 500, cfg.WindowSize)
	assert.Equal(t, 50, cfg.Overlap)
	assert.Equal(t, 2*time.Second, cfg.BaseDelay)
	assert.True(t, cfg.ServerMode)
}

func TestLoad_InvalidChunkingRejected(t *testing.T) {
	t.Setenv("CHUNK_WINDOW_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, domain.IsConfig(err))
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	t.Setenv("RETRIEVAL_K", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RetrievalK)
}
