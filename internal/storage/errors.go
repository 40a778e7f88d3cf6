package storage

import "github.com/docuchat/docuchat/internal/domain"

var (
	ErrQdrantUnreachable = domain.NewError(domain.KindTransient, "qdrant server unreachable")
	ErrDocumentNotFound  = domain.NewError(domain.KindNotFound, "document not found")
	ErrDuplicateDocument = domain.NewError(domain.KindConflict, "document already exists")
	ErrDimensionMismatch = domain.NewError(domain.KindValidation, "embedding dimension mismatch")

	// ErrNoEmbeddedChunks signals that vector search cannot rank anything
	// because no stored chunk carries an embedding. Callers degrade to
	// lexical search instead of treating this as a failure.
	ErrNoEmbeddedChunks = domain.NewError(domain.KindTransient, "no embedded chunks available")
)
