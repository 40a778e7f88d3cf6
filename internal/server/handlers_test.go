package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/docuchat/internal/chunker"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/generation"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/storage"
)

const testDim = 3

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) MaxBatchSize() int { return 100 }

func (stubEmbedder) EmbedOne(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type stubGenerator struct {
	answer string
	err    error
}

func (g *stubGenerator) Generate(_ context.Context, _, _ string, _ generation.Mode) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func newTestServer(t *testing.T, gen Generator) (*httptest.Server, storage.ChunkStore) {
	t.Helper()

	ch, err := chunker.New(100, 20)
	require.NoError(t, err)

	store := storage.NewMemoryStore(testDim)
	emb := stubEmbedder{}
	srv := New(Config{
		Pipeline:  ingest.NewPipeline(ch, emb, store, nil),
		Engine:    retrieval.NewEngine(store, emb, nil),
		Store:     store,
		Generator: gen,
		Backend:   "memory",
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "memory", body.Backend)
}

func TestCreateDocument(t *testing.T) {
	ts, store := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/documents", createDocumentRequest{
		Title:    "Remote work",
		Content:  strings.Repeat("remote work policy. ", 20),
		Category: "hr-policy",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body documentResponse
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, "hr-policy", body.Category)
	assert.Greater(t, body.ChunksCreated, 1)
	assert.Equal(t, "full", body.EmbeddingState)

	docs, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestCreateDocument_ValidationMapsTo400(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/documents", createDocumentRequest{
		Content:  "text",
		Category: "gossip",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/documents", createDocumentRequest{Category: "general"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestUpload(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "policy.md")
	require.NoError(t, err)
	_, err = fw.Write([]byte("# Travel Policy\n\nBook economy for flights under six hours."))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("category", "hr-policy"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body documentResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Travel Policy", body.Title, "title comes from the first markdown heading")
	assert.Equal(t, "policy.md", body.SourceFileName)
}

func TestUpload_UnsupportedTypeRejected(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "scan.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestDeleteDocument(t *testing.T) {
	ts, store := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/documents", createDocumentRequest{
		Content:  "short lived document",
		Category: "general",
	})
	var created documentResponse
	decodeBody(t, resp, &created)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/documents/%s", ts.URL, created.ID), nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)
	delResp.Body.Close()

	docs, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDeleteDocument_UnknownMapsTo404(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/documents/does-not-exist", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSearch(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/documents", createDocumentRequest{
		Title:    "Remote work",
		Content:  "remote work eligibility requires six months tenure",
		Category: "hr-policy",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/search", searchRequest{Query: "remote work eligibility"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []searchResult `json:"results"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "Remote work", body.Results[0].DocumentTitle)
	assert.Contains(t, body.Results[0].Content, "six months tenure")
}

func TestSearch_EmptyQueryMapsTo400(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/search", searchRequest{Query: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestChat(t *testing.T) {
	ts, _ := newTestServer(t, &stubGenerator{answer: "Six months of tenure."})

	resp := postJSON(t, ts.URL+"/api/documents", createDocumentRequest{
		Title:    "Remote work",
		Content:  "remote work eligibility requires six months tenure",
		Category: "hr-policy",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/chat", chatRequest{Message: "How long until remote eligibility?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body chatResponse
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.SessionID)
	assert.Equal(t, "Six months of tenure.", body.Answer)
	require.NotEmpty(t, body.Sources)
	assert.Equal(t, "Remote work", body.Sources[0].Title)

	// The session now holds the user turn and the assistant turn.
	histResp, err := http.Get(ts.URL + "/api/chat/history?session_id=" + body.SessionID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, histResp.StatusCode)

	var session struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	decodeBody(t, histResp, &session)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "user", session.Messages[0].Role)
	assert.Equal(t, "assistant", session.Messages[1].Role)
}

func TestChat_GenerationFailureMapsTo502(t *testing.T) {
	ts, _ := newTestServer(t, &stubGenerator{err: domain.NewError(domain.KindTransient, "service down")})

	resp := postJSON(t, ts.URL+"/api/chat", chatRequest{Message: "anything"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
}

func TestChat_DisabledWithoutGenerator(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/chat", chatRequest{Message: "anything"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()
}

func TestChat_UnknownAgentTypeRejected(t *testing.T) {
	ts, _ := newTestServer(t, &stubGenerator{answer: "x"})

	resp := postJSON(t, ts.URL+"/api/chat", chatRequest{Message: "hi", AgentType: "chitchat"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestChatHistory_ListsSessions(t *testing.T) {
	ts, _ := newTestServer(t, &stubGenerator{answer: "ok"})

	resp := postJSON(t, ts.URL+"/api/chat", chatRequest{Message: "first"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	histResp, err := http.Get(ts.URL + "/api/chat/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, histResp.StatusCode)

	var body struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
	}
	decodeBody(t, histResp, &body)
	assert.Len(t, body.Sessions, 1)
}
