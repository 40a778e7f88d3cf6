package storage

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is the ephemeral in-process backend. It has no native vector
// index; vector search is brute-force cosine over chunks that carry an
// embedding. All state is lost on process exit.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	docs      map[string]Document
	chunks    map[string][]Chunk // documentID -> chunks ordered by index
}

// NewMemoryStore creates an empty store enforcing the given embedding
// dimension. A non-positive dimension falls back to DefaultVectorDimension.
func NewMemoryStore(dimension int) *MemoryStore {
	if dimension <= 0 {
		dimension = DefaultVectorDimension
	}
	return &MemoryStore{
		dimension: dimension,
		docs:      make(map[string]Document),
		chunks:    make(map[string][]Chunk),
	}
}

// Put stores the document and its chunks under one lock so readers never see
// a partial chunk set.
func (s *MemoryStore) Put(ctx context.Context, doc Document, chunks []Chunk) error {
	for _, ch := range chunks {
		if vec, ok := ch.Embedding.Values(); ok && len(vec) != s.dimension {
			return ErrDimensionMismatch
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		return ErrDuplicateDocument
	}

	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	s.docs[doc.ID] = doc
	s.chunks[doc.ID] = ordered
	return nil
}

// GetDocument returns the document by ID.
func (s *MemoryStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[documentID]
	if !ok {
		return Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

// ListDocuments returns all documents ordered by upload time, then ID for
// stable ordering of same-instant uploads.
func (s *MemoryStore) ListDocuments(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.Before(docs[j].UploadedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// GetByDocument returns the document's chunks ordered by index. Unknown
// documents yield an empty slice, matching post-deletion reads.
func (s *MemoryStore) GetByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := s.chunks[documentID]
	out := make([]Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// VectorSearch ranks embedded chunks by cosine similarity, descending. The
// raw cosine is mapped from [-1,1] into [0,1] so scores are comparable with
// the lexical path. Returns ErrNoEmbeddedChunks when nothing has a vector.
func (s *MemoryStore) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]SearchResult, error) {
	if len(queryEmbedding) != s.dimension {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		k = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	embedded := false
	for docID, chunks := range s.chunks {
		doc := s.docs[docID]
		for _, ch := range chunks {
			vec, ok := ch.Embedding.Values()
			if !ok {
				continue
			}
			embedded = true
			score := (cosine(queryEmbedding, vec) + 1) / 2
			results = append(results, SearchResult{Chunk: ch, Document: doc, Score: score})
		}
	}
	if !embedded {
		return nil, ErrNoEmbeddedChunks
	}

	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// LexicalSearch ranks chunks by term overlap with the query, descending.
func (s *MemoryStore) LexicalSearch(ctx context.Context, queryText string, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	querySet := tokenSet(queryText)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for docID, chunks := range s.chunks {
		doc := s.docs[docID]
		for _, ch := range chunks {
			score := lexicalScore(querySet, ch.Content)
			if score == 0 {
				continue
			}
			results = append(results, SearchResult{Chunk: ch, Document: doc, Score: score})
		}
	}

	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteDocument removes the document and all its chunks under one lock.
func (s *MemoryStore) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[documentID]; !ok {
		return ErrDocumentNotFound
	}
	delete(s.docs, documentID)
	delete(s.chunks, documentID)
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
