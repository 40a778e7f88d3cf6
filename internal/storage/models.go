package storage

import "time"

// Category is the closed set of document categories accepted at ingestion.
type Category string

const (
	CategoryHRPolicy    Category = "hr-policy"
	CategoryEngineering Category = "engineering"
	CategoryFinance     Category = "finance"
	CategoryLegal       Category = "legal"
	CategoryGeneral     Category = "general"
)

// Categories lists every valid category.
func Categories() []Category {
	return []Category{
		CategoryHRPolicy,
		CategoryEngineering,
		CategoryFinance,
		CategoryLegal,
		CategoryGeneral,
	}
}

// Valid reports whether c is a member of the category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryHRPolicy, CategoryEngineering, CategoryFinance, CategoryLegal, CategoryGeneral:
		return true
	}
	return false
}

// Document is a full uploaded text, immutable after creation except deletion.
// Deleting a document cascades to all of its chunks.
type Document struct {
	ID             string // UUID
	Title          string
	Content        string // Full raw text
	Category       Category
	SourceFileName string
	UploadedAt     time.Time
	OwnerID        string // Optional
}

// Embedding is an optional fixed-length vector. The zero value is the
// unembedded state; consumers must check the second return of Values rather
// than assume a vector is present.
type Embedding struct {
	values []float32
}

// NewEmbedding wraps a computed vector. An empty or nil vector produces the
// unembedded state.
func NewEmbedding(values []float32) Embedding {
	if len(values) == 0 {
		return Embedding{}
	}
	return Embedding{values: values}
}

// Values returns the vector and whether one is set.
func (e Embedding) Values() ([]float32, bool) {
	if len(e.values) == 0 {
		return nil, false
	}
	return e.values, true
}

// Dimension returns the vector length, 0 when unembedded.
func (e Embedding) Dimension() int { return len(e.values) }

// Chunk is a bounded substring of its document's content, the unit of
// retrieval. Index is 0-based per document.
type Chunk struct {
	ID         string // UUID
	DocumentID string
	Content    string
	Index      int
	Embedding  Embedding
}

// SearchResult pairs a matching chunk with its parent document and a
// similarity score in [0,1]. Results are transient; they are assembled at
// query time and never written back.
type SearchResult struct {
	Chunk    Chunk
	Document Document
	Score    float64
}

// DefaultVectorDimension is the embedding size for text-embedding-3-small.
// The dimension is fixed per deployment; both backends reject vectors of any
// other length.
const DefaultVectorDimension = 1536
