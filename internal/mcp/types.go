// Package mcp exposes the document store to MCP clients as tools.
package mcp

import "time"

// SearchDocsInput defines the input parameters for the search_docs tool.
type SearchDocsInput struct {
	// Query is the search query.
	Query string `json:"query" jsonschema:"required,description=The search query for finding relevant document chunks"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of chunks to return"`
}

// SearchDocsOutput contains the search results.
type SearchDocsOutput struct {
	// Results is the list of matching chunks with document metadata.
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g., "No matching chunks found").
	Message string `json:"message,omitempty"`
}

// SearchResult is one chunk match.
type SearchResult struct {
	// DocumentID identifies the parent document, usable with fetch_doc.
	DocumentID string `json:"document_id"`
	// Title is the parent document title.
	Title string `json:"title"`
	// Category is the parent document category.
	Category string `json:"category"`
	// ChunkIndex is the chunk's position within the document.
	ChunkIndex int `json:"chunk_index"`
	// Content is the chunk text.
	Content string `json:"content"`
	// Score is the relevance score (0-1).
	Score float64 `json:"score"`
}

// FetchDocInput defines the input parameters for the fetch_doc tool.
type FetchDocInput struct {
	// DocumentID is the document to retrieve.
	DocumentID string `json:"document_id" jsonschema:"required,description=The document ID to retrieve"`
}

// FetchDocOutput contains the retrieved document.
type FetchDocOutput struct {
	// Found indicates whether the document exists.
	Found bool `json:"found"`
	// DocumentID echoes the requested ID.
	DocumentID string `json:"document_id"`
	// Title is the document title.
	Title string `json:"title,omitempty"`
	// Category is the document category.
	Category string `json:"category,omitempty"`
	// Content is the full document text.
	Content string `json:"content,omitempty"`
	// UploadedAt is when the document was ingested.
	UploadedAt time.Time `json:"uploaded_at,omitempty"`
}

// ListDocsInput defines the input parameters for the list_docs tool.
// The tool takes no parameters.
type ListDocsInput struct{}

// ListDocsOutput contains the list of all stored documents.
type ListDocsOutput struct {
	// Documents lists every stored document, newest first.
	Documents []DocumentInfo `json:"documents"`
	// Count is the total number of documents.
	Count int `json:"count"`
}

// DocumentInfo is the per-document listing entry.
type DocumentInfo struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// IndexStatusInput defines the input parameters for the index_status tool.
// The tool takes no parameters.
type IndexStatusInput struct{}

// IndexStatusOutput reports the state of the index.
type IndexStatusOutput struct {
	// Backend names the active store, "qdrant" or "memory".
	Backend string `json:"backend"`
	// DocumentCount is the number of stored documents.
	DocumentCount int `json:"document_count"`
	// PointCount is the number of stored points, when the backend reports it.
	PointCount uint64 `json:"point_count,omitempty"`
}
