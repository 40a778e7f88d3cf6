// Package main provides the docuchat CLI for managing the document index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docuchat/docuchat/internal/chunker"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/embedding"
	"github.com/docuchat/docuchat/internal/extract"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "docuchat",
	Short: "DocuChat document index management tool",
	Long: `CLI tool for managing the DocuChat document index in Qdrant.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (optional, lexical-only without it)`,
}

var (
	ingestCategory string
	ingestTitle    string
	searchK        int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Chunk, embed and store documents from .txt or .md files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and all its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCategory, "category", string(storage.CategoryGeneral),
		fmt.Sprintf("document category, one of %v", storage.Categories()))
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (default: derived from the file)")
	searchCmd.Flags().IntVar(&searchK, "k", retrieval.DefaultK, "number of results")

	rootCmd.AddCommand(ingestCmd, searchCmd, listCmd, deleteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// deps holds the wired collaborators the subcommands share.
type deps struct {
	store    *storage.QdrantStore
	pipeline *ingest.Pipeline
	engine   *retrieval.Engine
}

// connect wires the CLI against Qdrant. Unlike the server there is no
// in-memory fallback: an ephemeral index is useless to a process that exits.
func connect(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.VectorDimension)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	var (
		ingestEmbedder ingest.Embedder
		engineEmbedder retrieval.Embedder
	)
	if cfg.OpenAIAPIKey != "" {
		client, err := embedding.NewClient(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		embedder := embedding.NewEmbedder(client, embedding.Options{
			MaxTextChars: cfg.MaxTextChars,
			MaxBatchSize: cfg.MaxBatchSize,
			MaxRetries:   cfg.MaxRetries,
			BaseDelay:    cfg.BaseDelay,
		})
		ingestEmbedder = embedder
		engineEmbedder = embedder
	}

	ch, err := chunker.New(cfg.WindowSize, cfg.Overlap)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return &deps{
		store:    store,
		pipeline: ingest.NewPipeline(ch, ingestEmbedder, store, logger),
		engine:   retrieval.NewEngine(store, engineEmbedder, logger),
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.store.Close()

	extractor := extract.New()
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		extraction, err := extractor.Extract(filepath.Base(path), data)
		if err != nil {
			return err
		}

		title := ingestTitle
		if title == "" {
			title = extraction.Title
		}
		result, err := d.pipeline.Ingest(ctx, ingest.Request{
			Title:          title,
			Content:        extraction.Text,
			Category:       storage.Category(ingestCategory),
			SourceFileName: filepath.Base(path),
		})
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		fmt.Printf("%s  %s (%d chunks, embedding %s)\n",
			result.Document.ID, result.Document.Title, result.ChunksCreated, result.EmbeddingState)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.store.Close()

	results, err := d.engine.Search(ctx, args[0], searchK)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matching chunks found.")
		return nil
	}
	for _, res := range results {
		fmt.Printf("%.3f  %s (%s) chunk %d\n", res.Score, res.Document.Title, res.Document.Category, res.Chunk.Index)
		fmt.Printf("       %s\n", firstLine(res.Chunk.Content))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.store.Close()

	docs, err := d.store.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		fmt.Printf("%s  %-12s %s\n", doc.ID, doc.Category, doc.Title)
	}
	fmt.Printf("%d documents\n", len(docs))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.store.Close()

	if _, err := d.store.GetDocument(ctx, args[0]); err != nil {
		return err
	}
	if err := d.store.DeleteDocument(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

// firstLine truncates chunk content to one preview line.
func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || i > 120 {
			return s[:i] + "..."
		}
	}
	return s
}
