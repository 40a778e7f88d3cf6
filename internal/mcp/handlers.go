package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/storage"
)

// makeSearchHandler creates the search_docs tool handler. The engine decides
// between vector search and the lexical fallback; the handler only shapes the
// output.
func makeSearchHandler(engine *retrieval.Engine) func(
	context.Context, *mcp.CallToolRequest, SearchDocsInput,
) (*mcp.CallToolResult, SearchDocsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchDocsInput) (
		*mcp.CallToolResult, SearchDocsOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = retrieval.DefaultK
		}

		results, err := engine.Search(ctx, input.Query, maxResults)
		if err != nil {
			return nil, SearchDocsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		if len(results) == 0 {
			return nil, SearchDocsOutput{
				Results: []SearchResult{},
				Message: "No matching chunks found. Try broader search terms.",
			}, nil
		}

		out := make([]SearchResult, len(results))
		for i, res := range results {
			out[i] = SearchResult{
				DocumentID: res.Document.ID,
				Title:      res.Document.Title,
				Category:   string(res.Document.Category),
				ChunkIndex: res.Chunk.Index,
				Content:    res.Chunk.Content,
				Score:      res.Score,
			}
		}
		return nil, SearchDocsOutput{Results: out}, nil
	}
}

// makeFetchHandler creates the fetch_doc tool handler. A missing document is
// reported in the output rather than as a tool error so clients can recover.
func makeFetchHandler(store storage.ChunkStore) func(
	context.Context, *mcp.CallToolRequest, FetchDocInput,
) (*mcp.CallToolResult, FetchDocOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input FetchDocInput) (
		*mcp.CallToolResult, FetchDocOutput, error,
	) {
		doc, err := store.GetDocument(ctx, input.DocumentID)
		if err != nil {
			if errors.Is(err, storage.ErrDocumentNotFound) {
				return nil, FetchDocOutput{
					Found:      false,
					DocumentID: input.DocumentID,
				}, nil
			}
			return nil, FetchDocOutput{}, fmt.Errorf("fetch failed: %w", err)
		}

		return nil, FetchDocOutput{
			Found:      true,
			DocumentID: doc.ID,
			Title:      doc.Title,
			Category:   string(doc.Category),
			Content:    doc.Content,
			UploadedAt: doc.UploadedAt,
		}, nil
	}
}

// makeListHandler creates the list_docs tool handler.
func makeListHandler(store storage.ChunkStore) func(
	context.Context, *mcp.CallToolRequest, ListDocsInput,
) (*mcp.CallToolResult, ListDocsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocsInput) (
		*mcp.CallToolResult, ListDocsOutput, error,
	) {
		docs, err := store.ListDocuments(ctx)
		if err != nil {
			return nil, ListDocsOutput{}, fmt.Errorf("list failed: %w", err)
		}

		out := make([]DocumentInfo, len(docs))
		for i, doc := range docs {
			out[i] = DocumentInfo{
				DocumentID: doc.ID,
				Title:      doc.Title,
				Category:   string(doc.Category),
				UploadedAt: doc.UploadedAt,
			}
		}
		return nil, ListDocsOutput{Documents: out, Count: len(out)}, nil
	}
}

// pointCounter is implemented by backends that can report raw point counts.
type pointCounter interface {
	GetCollectionInfo(ctx context.Context) (*storage.CollectionInfo, error)
}

// makeStatusHandler creates the index_status tool handler.
func makeStatusHandler(store storage.ChunkStore, backend string) func(
	context.Context, *mcp.CallToolRequest, IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexStatusInput) (
		*mcp.CallToolResult, IndexStatusOutput, error,
	) {
		docs, err := store.ListDocuments(ctx)
		if err != nil {
			return nil, IndexStatusOutput{}, fmt.Errorf("status failed: %w", err)
		}

		out := IndexStatusOutput{
			Backend:       backend,
			DocumentCount: len(docs),
		}

		if pc, ok := store.(pointCounter); ok {
			if info, err := pc.GetCollectionInfo(ctx); err == nil {
				out.PointCount = info.PointsCount
			}
		}
		return nil, out, nil
	}
}
