// Package ingest turns raw document text into stored, optionally embedded
// chunks. Embedding is best-effort: a document whose embedding call fails
// transiently is persisted anyway, just without vectors.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuchat/docuchat/internal/chunker"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/storage"
)

// EmbeddingState describes how far embedding got for a document.
type EmbeddingState string

const (
	// EmbeddedFully means every chunk carries a vector.
	EmbeddedFully EmbeddingState = "full"
	// EmbeddedPartially means at least one batch failed transiently.
	EmbeddedPartially EmbeddingState = "partial"
	// EmbeddingSkipped means no chunk carries a vector, either because no
	// embedder is configured or because every batch failed transiently.
	EmbeddingSkipped EmbeddingState = "skipped"
)

// Embedder is the ingestion-side embedding dependency.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	MaxBatchSize() int
}

// Request describes one document to ingest.
type Request struct {
	Title          string
	Content        string
	Category       storage.Category
	SourceFileName string
	OwnerID        string
}

// Result reports what an ingestion produced.
type Result struct {
	Document       storage.Document
	ChunksCreated  int
	EmbeddingState EmbeddingState
}

// Pipeline chunks, embeds and stores documents. Each Ingest call is an
// independent unit of work; the pipeline itself holds no mutable state.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder Embedder
	store    storage.ChunkStore
	logger   *slog.Logger
}

// NewPipeline creates a pipeline. A nil embedder skips embedding entirely;
// chunks are stored unembedded and retrieval relies on the lexical path.
func NewPipeline(ch *chunker.Chunker, embedder Embedder, store storage.ChunkStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{chunker: ch, embedder: embedder, store: store, logger: logger}
}

// Ingest validates, chunks, embeds (best-effort) and transactionally stores
// one document. Chunking and embedding are synchronous relative to the
// request; there is no background indexing. A document with zero extractable
// text is stored with zero chunks, which is not an error.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	if req.Content == "" {
		return nil, domain.Validationf("document text is empty")
	}
	if !req.Category.Valid() {
		return nil, domain.Validationf("unknown category %q", req.Category)
	}

	doc := storage.Document{
		ID:             uuid.New().String(),
		Title:          documentTitle(req),
		Content:        req.Content,
		Category:       req.Category,
		SourceFileName: req.SourceFileName,
		UploadedAt:     time.Now().UTC(),
		OwnerID:        req.OwnerID,
	}

	pieces := p.chunker.Split(req.Content)

	chunks := make([]storage.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = storage.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    piece.Content,
			Index:      piece.Index,
		}
	}

	state, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if err := p.store.Put(ctx, doc, chunks); err != nil {
		return nil, err
	}

	p.logger.Info("ingested document",
		"document_id", doc.ID,
		"category", doc.Category,
		"chunks", len(chunks),
		"embedding", state,
	)

	return &Result{Document: doc, ChunksCreated: len(chunks), EmbeddingState: state}, nil
}

// embedChunks attaches vectors in place, one batch call per group of
// MaxBatchSize chunks. Transient failures degrade the affected batch to
// unembedded and ingestion continues; permanent and validation failures
// propagate.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []storage.Chunk) (EmbeddingState, error) {
	if p.embedder == nil || len(chunks) == 0 {
		return EmbeddingSkipped, nil
	}

	batchSize := p.embedder.MaxBatchSize()
	embedded := 0

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Content
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if domain.IsTransient(err) {
				p.logger.Warn("embedding batch failed, storing chunks without vectors",
					"batch_start", start, "batch_end", end, "error", err)
				continue
			}
			return "", err
		}

		for i := start; i < end; i++ {
			chunks[i].Embedding = storage.NewEmbedding(vectors[i-start])
		}
		embedded += end - start
	}

	switch {
	case embedded == len(chunks):
		return EmbeddedFully, nil
	case embedded > 0:
		return EmbeddedPartially, nil
	default:
		return EmbeddingSkipped, nil
	}
}

// documentTitle falls back from the request title to the source file name to
// the leading words of the content.
func documentTitle(req Request) string {
	if t := strings.TrimSpace(req.Title); t != "" {
		return t
	}
	if req.SourceFileName != "" {
		return req.SourceFileName
	}
	title := strings.TrimSpace(req.Content)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	if len(title) > 80 {
		title = title[:80]
	}
	return strings.TrimSpace(title)
}
