// Package main provides the DocuChat server entry point: the JSON HTTP API
// plus the MCP surface over stdio or streamable HTTP.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/docuchat/docuchat/internal/chunker"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/embedding"
	"github.com/docuchat/docuchat/internal/generation"
	"github.com/docuchat/docuchat/internal/ingest"
	mcpserver "github.com/docuchat/docuchat/internal/mcp"
	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/server"
	"github.com/docuchat/docuchat/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Cancel on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Durable backend when Qdrant is reachable, ephemeral otherwise.
	var store storage.ChunkStore
	backend := "qdrant"
	qdrantStore, err := storage.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.VectorDimension)
	if err != nil {
		logger.Warn("qdrant unreachable, falling back to in-memory store", "error", err)
		store = storage.NewMemoryStore(cfg.VectorDimension)
		backend = "memory"
	} else {
		if err := qdrantStore.EnsureCollection(ctx); err != nil {
			logger.Error("failed to ensure collection", "error", err)
			os.Exit(1)
		}
		defer qdrantStore.Close()
		store = qdrantStore
	}

	// Embedding and generation are optional: without an API key the service
	// runs lexical-only and chat is disabled.
	var (
		ingestEmbedder ingest.Embedder
		engineEmbedder retrieval.Embedder
		generator      server.Generator
	)
	if cfg.OpenAIAPIKey != "" {
		client, err := embedding.NewClient(cfg.OpenAIAPIKey)
		if err != nil {
			logger.Error("failed to create embedding client", "error", err)
			os.Exit(1)
		}
		embedder := embedding.NewEmbedder(client, embedding.Options{
			MaxTextChars: cfg.MaxTextChars,
			MaxBatchSize: cfg.MaxBatchSize,
			MaxRetries:   cfg.MaxRetries,
			BaseDelay:    cfg.BaseDelay,
		})
		ingestEmbedder = embedder
		engineEmbedder = embedder
		generator = generation.NewGenerator(client.Client())
	} else {
		logger.Warn("OPENAI_API_KEY not set, running lexical-only with chat disabled")
	}

	ch, err := chunker.New(cfg.WindowSize, cfg.Overlap)
	if err != nil {
		logger.Error("invalid chunker configuration", "error", err)
		os.Exit(1)
	}

	pipeline := ingest.NewPipeline(ch, ingestEmbedder, store, logger)
	engine := retrieval.NewEngine(store, engineEmbedder, logger)

	apiServer := server.New(server.Config{
		Pipeline:        pipeline,
		Engine:          engine,
		Store:           store,
		Generator:       generator,
		Backend:         backend,
		MaxContextChars: cfg.MaxContextChars,
		DefaultK:        cfg.RetrievalK,
		Logger:          logger,
	})

	mcpSrv := mcpserver.NewServer(&mcpserver.Config{
		Store:   store,
		Engine:  engine,
		Backend: backend,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", mcpserver.NewLandingHandler())
	mux.Handle("/api/", apiServer.Handler())
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(mcpSrv, nil))

	addr := "0.0.0.0:" + cfg.HTTPPort

	if cfg.ServerMode {
		logger.Info("starting HTTP server", "addr", addr, "backend", backend)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// Stdio mode: MCP over stdin/stdout, HTTP API in the background.
	go func() {
		logger.Info("starting HTTP server", "addr", addr, "backend", backend)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("starting MCP server (stdio mode)")
	if err := mcpSrv.Run(ctx); err != nil {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
