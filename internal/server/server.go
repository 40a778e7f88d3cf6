// Package server exposes the document pipeline over a JSON HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/extract"
	"github.com/docuchat/docuchat/internal/generation"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/storage"
)

// Generator is the chat-side generation dependency. Nil means chat is
// disabled for this deployment.
type Generator interface {
	Generate(ctx context.Context, question, docContext string, mode generation.Mode) (string, error)
}

// Config wires the server's collaborators.
type Config struct {
	Pipeline  *ingest.Pipeline
	Engine    *retrieval.Engine
	Store     storage.ChunkStore
	Generator Generator
	// Backend names the active chunk store for health reporting,
	// "qdrant" or "memory".
	Backend string
	// MaxContextChars bounds the assembled context per chat turn.
	MaxContextChars int
	// DefaultK is the result count when a search request leaves k unset.
	DefaultK int
	Logger   *slog.Logger
}

// Server handles the HTTP API.
type Server struct {
	pipeline        *ingest.Pipeline
	engine          *retrieval.Engine
	store           storage.ChunkStore
	generator       Generator
	extractor       *extract.Extractor
	sessions        *chat.Store
	backend         string
	maxContextChars int
	defaultK        int
	logger          *slog.Logger
}

// New creates the API server.
func New(cfg Config) *Server {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = retrieval.DefaultMaxContextChars
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = retrieval.DefaultK
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		pipeline:        cfg.Pipeline,
		engine:          cfg.Engine,
		store:           cfg.Store,
		generator:       cfg.Generator,
		extractor:       extract.New(),
		sessions:        chat.NewStore(),
		backend:         cfg.Backend,
		maxContextChars: cfg.MaxContextChars,
		defaultK:        cfg.DefaultK,
		logger:          cfg.Logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/documents", s.handleCreateDocument)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/history", s.handleChatHistory)
	return mux
}
