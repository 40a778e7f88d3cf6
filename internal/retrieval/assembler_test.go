package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/docuchat/internal/storage"
)

func makeResult(title string, category storage.Category, content string) storage.SearchResult {
	return storage.SearchResult{
		Document: storage.Document{Title: title, Category: category},
		Chunk:    storage.Chunk{Content: content},
	}
}

func TestBuildContext_FormatsBlocks(t *testing.T) {
	results := []storage.SearchResult{
		makeResult("Remote work policy", storage.CategoryHRPolicy, "six months tenure required"),
		makeResult("Expense guide", storage.CategoryFinance, "receipts within 30 days"),
	}

	got := BuildContext(results, 4000)

	want := "Document: Remote work policy (hr-policy)\nContent: six months tenure required" +
		BlockDelimiter +
		"Document: Expense guide (finance)\nContent: receipts within 30 days"
	assert.Equal(t, want, got)
}

func TestBuildContext_PreservesResultOrder(t *testing.T) {
	results := []storage.SearchResult{
		makeResult("B", storage.CategoryGeneral, "second block"),
		makeResult("A", storage.CategoryGeneral, "first block"),
	}

	got := BuildContext(results, 4000)
	assert.Less(t, strings.Index(got, "second block"), strings.Index(got, "first block"),
		"blocks appear in the order received, not re-sorted")
}

func TestBuildContext_TruncatesTailAtMaxChars(t *testing.T) {
	results := []storage.SearchResult{
		makeResult("Long", storage.CategoryGeneral, strings.Repeat("a", 500)),
		makeResult("Longer", storage.CategoryGeneral, strings.Repeat("b", 500)),
	}

	got := BuildContext(results, 100)
	require.Len(t, got, 100)
	assert.True(t, strings.HasPrefix(got, "Document: Long (general)"))
}

func TestBuildContext_EmptyResults(t *testing.T) {
	assert.Empty(t, BuildContext(nil, 4000))
}

func TestBuildContext_Pure(t *testing.T) {
	results := []storage.SearchResult{
		makeResult("Doc", storage.CategoryLegal, "stable content"),
	}
	first := BuildContext(results, 200)
	second := BuildContext(results, 200)
	assert.Equal(t, first, second)
}
