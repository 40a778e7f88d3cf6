package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/generation"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/storage"
)

// maxUploadBytes caps multipart uploads at 10 MiB.
const maxUploadBytes = 10 << 20

type healthResponse struct {
	Status    string `json:"status"`
	Backend   string `json:"backend"`
	Timestamp string `json:"timestamp"`
}

type healthChecker interface {
	Health(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "healthy",
		Backend:   s.backend,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if hc, ok := s.store.(healthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			resp.Status = "unhealthy"
			s.respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type createDocumentRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	OwnerID  string `json:"owner_id"`
}

type documentResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Category       string `json:"category"`
	SourceFileName string `json:"source_file_name,omitempty"`
	UploadedAt     string `json:"uploaded_at"`
	ChunksCreated  int    `json:"chunks_created,omitempty"`
	EmbeddingState string `json:"embedding_state,omitempty"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, domain.Validationf("invalid JSON body: %v", err))
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), ingest.Request{
		Title:    req.Title,
		Content:  req.Content,
		Category: normalizeCategory(req.Category),
		OwnerID:  req.OwnerID,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ingestResponse(result))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, domain.Validationf("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, domain.Validationf("missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.respondError(w, domain.WrapError(domain.KindTransient, "reading upload failed", err))
		return
	}

	extraction, err := s.extractor.Extract(header.Filename, data)
	if err != nil {
		s.respondError(w, err)
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), ingest.Request{
		Title:          extraction.Title,
		Content:        extraction.Text,
		Category:       normalizeCategory(r.FormValue("category")),
		SourceFileName: header.Filename,
		OwnerID:        r.FormValue("owner_id"),
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ingestResponse(result))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	out := make([]documentResponse, len(docs))
	for i, doc := range docs {
		out[i] = documentResponse{
			ID:             doc.ID,
			Title:          doc.Title,
			Category:       string(doc.Category),
			SourceFileName: doc.SourceFileName,
			UploadedAt:     doc.UploadedAt.Format(time.RFC3339),
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResult struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Category      string  `json:"category"`
	ChunkIndex    int     `json:"chunk_index"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, domain.Validationf("invalid JSON body: %v", err))
		return
	}
	if req.K <= 0 {
		req.K = s.defaultK
	}

	results, err := s.engine.Search(r.Context(), req.Query, req.K)
	if err != nil {
		s.respondError(w, err)
		return
	}

	out := make([]searchResult, len(results))
	for i, res := range results {
		out[i] = searchResult{
			DocumentID:    res.Document.ID,
			DocumentTitle: res.Document.Title,
			Category:      string(res.Document.Category),
			ChunkIndex:    res.Chunk.Index,
			Content:       res.Chunk.Content,
			Score:         res.Score,
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"results": out})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	AgentType string `json:"agent_type"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Sources   []struct {
		DocumentID string `json:"document_id"`
		Title      string `json:"title"`
	} `json:"sources"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		s.respondError(w, domain.NewError(domain.KindConfig, "chat is disabled, no generation backend configured"))
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, domain.Validationf("invalid JSON body: %v", err))
		return
	}

	mode := generation.Mode(req.AgentType)
	if req.AgentType == "" {
		mode = generation.ModeDocumentSearch
	}
	if !mode.Valid() {
		s.respondError(w, domain.Validationf("unknown agent type %q", req.AgentType))
		return
	}

	session, err := s.resolveSession(req.SessionID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	results, err := s.engine.Search(r.Context(), req.Message, s.defaultK)
	if err != nil {
		s.respondError(w, err)
		return
	}
	docContext := retrieval.BuildContext(results, s.maxContextChars)

	answer, err := s.generator.Generate(r.Context(), req.Message, docContext, mode)
	if err != nil {
		if domain.IsValidation(err) {
			s.respondError(w, err)
			return
		}
		s.logger.Error("chat generation failed", "session_id", session.ID, "error", err)
		s.respondStatus(w, http.StatusBadGateway, "answer generation failed")
		return
	}

	if _, err := s.sessions.Append(session.ID, chat.RoleUser, req.Message); err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := s.sessions.Append(session.ID, chat.RoleAssistant, answer); err != nil {
		s.respondError(w, err)
		return
	}

	resp := chatResponse{SessionID: session.ID, Answer: answer}
	seen := make(map[string]bool)
	for _, res := range results {
		if seen[res.Document.ID] {
			continue
		}
		seen[res.Document.ID] = true
		resp.Sources = append(resp.Sources, struct {
			DocumentID string `json:"document_id"`
			Title      string `json:"title"`
		}{res.Document.ID, res.Document.Title})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("session_id"); id != "" {
		session, err := s.sessions.Get(id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, session)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

// resolveSession returns the named session or creates a fresh one when the
// request carries no session id.
func (s *Server) resolveSession(sessionID string) (*chat.Session, error) {
	if sessionID == "" {
		return s.sessions.Create(), nil
	}
	return s.sessions.Get(sessionID)
}

func ingestResponse(result *ingest.Result) documentResponse {
	return documentResponse{
		ID:             result.Document.ID,
		Title:          result.Document.Title,
		Category:       string(result.Document.Category),
		SourceFileName: result.Document.SourceFileName,
		UploadedAt:     result.Document.UploadedAt.Format(time.RFC3339),
		ChunksCreated:  result.ChunksCreated,
		EmbeddingState: string(result.EmbeddingState),
	}
}

// normalizeCategory defaults a blank category to general.
func normalizeCategory(category string) storage.Category {
	if category == "" {
		return storage.CategoryGeneral
	}
	return storage.Category(category)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}

func (s *Server) respondStatus(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondError maps the error taxonomy onto HTTP status codes.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var domErr *domain.Error
	if errors.As(err, &domErr) {
		switch domErr.Kind {
		case domain.KindValidation:
			status = http.StatusBadRequest
		case domain.KindNotFound:
			status = http.StatusNotFound
		case domain.KindConflict:
			status = http.StatusConflict
		case domain.KindTransient:
			status = http.StatusServiceUnavailable
		}
	}
	if status >= 500 {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	s.respondStatus(w, status, err.Error())
}
