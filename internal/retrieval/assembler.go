package retrieval

import (
	"fmt"
	"strings"

	"github.com/docuchat/docuchat/internal/storage"
)

// DefaultMaxContextChars bounds the assembled context string.
const DefaultMaxContextChars = 4000

// BlockDelimiter separates result blocks in the assembled context.
const BlockDelimiter = "\n\n---\n\n"

// BuildContext formats results into the context string handed to the
// generation call, in the order received. Each result becomes one labeled
// block; the assembled string is hard-cut at maxChars. Pure function.
func BuildContext(results []storage.SearchResult, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Document: %s (%s)\nContent: %s",
			r.Document.Title, r.Document.Category, r.Chunk.Content))
	}

	assembled := strings.Join(blocks, BlockDelimiter)
	if len(assembled) > maxChars {
		assembled = assembled[:maxChars]
	}
	return assembled
}
