package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/storage"
)

const dim = 4

// stubEmbedder returns a fixed vector or a scripted error.
type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func seedStore(t *testing.T, embedded bool) (*storage.MemoryStore, storage.Document) {
	t.Helper()
	store := storage.NewMemoryStore(dim)

	doc := storage.Document{
		ID:         uuid.New().String(),
		Title:      "Remote work policy",
		Category:   storage.CategoryHRPolicy,
		UploadedAt: time.Now().UTC(),
	}

	var vec []float32
	if embedded {
		vec = []float32{1, 0, 0, 0}
	}
	chunks := []storage.Chunk{
		{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    "remote work eligibility requires six months tenure",
			Index:      0,
			Embedding:  storage.NewEmbedding(vec),
		},
		{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    "equipment stipends are granted on approval",
			Index:      1,
		},
	}
	require.NoError(t, store.Put(context.Background(), doc, chunks))
	return store, doc
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	store, _ := seedStore(t, true)
	engine := NewEngine(store, &stubEmbedder{vector: []float32{1, 0, 0, 0}}, nil)

	_, err := engine.Search(context.Background(), "   ", 5)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestSearch_VectorPath(t *testing.T) {
	store, doc := seedStore(t, true)
	emb := &stubEmbedder{vector: []float32{1, 0, 0, 0}}
	engine := NewEngine(store, emb, nil)

	results, err := engine.Search(context.Background(), "remote work", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, doc.ID, results[0].Document.ID)
	assert.Equal(t, 0, results[0].Chunk.Index)
}

func TestSearch_TransientEmbedFailureFallsBackToLexical(t *testing.T) {
	store, _ := seedStore(t, true)
	emb := &stubEmbedder{err: domain.NewError(domain.KindTransient, "rate limited")}
	engine := NewEngine(store, emb, nil)

	results, err := engine.Search(context.Background(), "remote work", 5)
	require.NoError(t, err, "transient embedding failure is silent to the caller")
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Chunk.Content, "remote work")
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearch_PermanentEmbedFailurePropagates(t *testing.T) {
	store, _ := seedStore(t, true)
	emb := &stubEmbedder{err: domain.NewError(domain.KindPermanent, "invalid credentials")}
	engine := NewEngine(store, emb, nil)

	_, err := engine.Search(context.Background(), "remote work", 5)
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))
}

func TestSearch_NoEmbeddedChunksFallsBackToLexical(t *testing.T) {
	store, _ := seedStore(t, false)
	emb := &stubEmbedder{vector: []float32{1, 0, 0, 0}}
	engine := NewEngine(store, emb, nil)

	results, err := engine.Search(context.Background(), "remote work", 5)
	require.NoError(t, err)
	require.Len(t, results, 1, "lexical fallback still finds the matching chunk")
	assert.Contains(t, results[0].Chunk.Content, "remote work")
}

func TestSearch_NilEmbedderUsesLexical(t *testing.T) {
	store, _ := seedStore(t, false)
	engine := NewEngine(store, nil, nil)

	results, err := engine.Search(context.Background(), "equipment stipends", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Chunk.Content, "equipment")
}

func TestSearch_EmptyStoreReturnsEmptyNotError(t *testing.T) {
	store := storage.NewMemoryStore(dim)
	engine := NewEngine(store, nil, nil)

	results, err := engine.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_ScoresNonIncreasingAndCappedAtK(t *testing.T) {
	store := storage.NewMemoryStore(dim)
	doc := storage.Document{
		ID:         uuid.New().String(),
		Title:      "Ranking",
		Category:   storage.CategoryGeneral,
		UploadedAt: time.Now().UTC(),
	}
	vectors := [][]float32{
		{0, 1, 0, 0},
		{1, 0, 0, 0},
		{1, 1, 0, 0},
		{0, 0, 1, 0},
		{1, 0, 1, 0},
	}
	var chunks []storage.Chunk
	for i, v := range vectors {
		chunks = append(chunks, storage.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    "candidate chunk",
			Index:      i,
			Embedding:  storage.NewEmbedding(v),
		})
	}
	require.NoError(t, store.Put(context.Background(), doc, chunks))

	engine := NewEngine(store, &stubEmbedder{vector: []float32{1, 0, 0, 0}}, nil)
	results, err := engine.Search(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, results, 3, "never more than k results")

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearch_TiesBrokenByChunkIndex(t *testing.T) {
	store := storage.NewMemoryStore(dim)
	doc := storage.Document{
		ID:         uuid.New().String(),
		Title:      "Ties",
		Category:   storage.CategoryGeneral,
		UploadedAt: time.Now().UTC(),
	}
	// Identical vectors mean identical scores; order must follow chunk index.
	var chunks []storage.Chunk
	for _, i := range []int{2, 0, 1} {
		chunks = append(chunks, storage.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    "same vector",
			Index:      i,
			Embedding:  storage.NewEmbedding([]float32{1, 0, 0, 0}),
		})
	}
	require.NoError(t, store.Put(context.Background(), doc, chunks))

	engine := NewEngine(store, &stubEmbedder{vector: []float32{1, 0, 0, 0}}, nil)
	results, err := engine.Search(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.Equal(t, 1, results[1].Chunk.Index)
	assert.Equal(t, 2, results[2].Chunk.Index)
}
