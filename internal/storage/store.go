// Package storage persists document chunks under two interchangeable
// backends: a durable Qdrant-backed store with native vector distance and an
// ephemeral in-process store.
package storage

import "context"

// ChunkStore is the dual-backend interface. Callers never branch on backend
// identity; the backend is chosen once at startup and injected.
type ChunkStore interface {
	// Put stores a document and all of its chunks transactionally: a
	// concurrent reader observes either the full chunk set or none of it.
	// A second Put for the same document ID fails with ErrDuplicateDocument.
	Put(ctx context.Context, doc Document, chunks []Chunk) error

	// GetDocument returns the document by ID or ErrDocumentNotFound.
	GetDocument(ctx context.Context, documentID string) (Document, error)

	// ListDocuments returns all documents ordered by upload time ascending.
	ListDocuments(ctx context.Context) ([]Document, error)

	// GetByDocument returns the document's chunks ordered by chunk index.
	GetByDocument(ctx context.Context, documentID string) ([]Chunk, error)

	// VectorSearch ranks embedded chunks by similarity to queryEmbedding,
	// descending, joined with parent document metadata in one pass. Returns
	// ErrNoEmbeddedChunks when no stored chunk has an embedding.
	VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]SearchResult, error)

	// LexicalSearch ranks chunks by deterministic term overlap with the
	// query text, descending. Chunks with zero overlap are omitted.
	LexicalSearch(ctx context.Context, queryText string, k int) ([]SearchResult, error)

	// DeleteDocument removes the document and cascades to all its chunks.
	// Deleting an unknown document returns ErrDocumentNotFound.
	DeleteDocument(ctx context.Context, documentID string) error
}
