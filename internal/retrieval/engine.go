// Package retrieval answers similarity queries over the chunk store,
// degrading from vector search to lexical search when embeddings are
// unavailable, and assembles retrieved chunks into a bounded context string
// for the downstream generation call.
package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/storage"
)

// DefaultK is the result count when the caller does not specify one.
const DefaultK = 5

// Embedder is the query-side embedding dependency.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Engine orchestrates query embedding, vector search and the lexical
// fallback. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	store    storage.ChunkStore
	embedder Embedder
	logger   *slog.Logger
}

// NewEngine creates an Engine over the given store and embedder. A nil
// embedder disables the vector path entirely; every query takes the lexical
// route. A nil logger falls back to slog.Default().
func NewEngine(store storage.ChunkStore, embedder Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, embedder: embedder, logger: logger}
}

// Search returns up to k results ranked by similarity score descending, ties
// broken by chunk index ascending. Transient embedding failures and stores
// with no embedded chunks degrade silently to lexical search (logged, not
// surfaced). Permanent embedding errors propagate. An empty store yields an
// empty result set, not an error.
func (e *Engine) Search(ctx context.Context, queryText string, k int) ([]storage.SearchResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, domain.Validationf("query text is empty")
	}
	if k <= 0 {
		k = DefaultK
	}

	if e.embedder == nil {
		e.logger.Warn("no embedder configured, using lexical search", "query_len", len(queryText))
		return e.store.LexicalSearch(ctx, queryText, k)
	}

	queryEmbedding, err := e.embedder.EmbedOne(ctx, queryText)
	if err != nil {
		if domain.IsPermanent(err) || domain.IsValidation(err) {
			return nil, err
		}
		e.logger.Warn("query embedding failed, falling back to lexical search", "error", err)
		return e.store.LexicalSearch(ctx, queryText, k)
	}

	results, err := e.store.VectorSearch(ctx, queryEmbedding, k)
	if err != nil {
		if errors.Is(err, storage.ErrNoEmbeddedChunks) {
			e.logger.Warn("no embedded chunks in store, falling back to lexical search")
			return e.store.LexicalSearch(ctx, queryText, k)
		}
		return nil, err
	}
	return results, nil
}
