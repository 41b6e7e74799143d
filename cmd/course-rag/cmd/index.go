package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursebot/course-rag/internal/corpus"
	"github.com/coursebot/course-rag/internal/embeddings"
	"github.com/coursebot/course-rag/internal/index"
	"github.com/coursebot/course-rag/pkg/models"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the corpus and populate the vector index",
	Long: `Read the corpus file, embed each document's content, and write
the vectors into the index.

The index is populated once; re-running against an existing index is
a no-op unless --force is given, which drops and rebuilds it.

Examples:
  # Populate a fresh index from the configured corpus file
  course-rag index

  # Drop the existing index and rebuild from scratch
  course-rag index --force`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Drop and rebuild an existing index")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	slog.Debug("index command starting", "corpus", cfg.Corpus.File, "force", indexForce)

	docs, err := corpus.Load(cfg.Corpus.File)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("corpus %s is empty - run 'course-rag ingest' first", cfg.Corpus.File)
	}

	idx, err := index.New(index.Config{
		Addresses:  cfg.Index.Addresses,
		Name:       cfg.Index.Name,
		Username:   cfg.Index.Username,
		Password:   cfg.Index.Password,
		Dimensions: indexDimensions(cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to create index client: %w", err)
	}

	created, err := idx.EnsureIndex(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure index: %w", err)
	}
	if !created {
		if !indexForce {
			fmt.Printf("Index %q already exists, nothing to do (use --force to rebuild)\n", cfg.Index.Name)
			return nil
		}
		if err := idx.DeleteIndex(ctx); err != nil {
			return fmt.Errorf("failed to delete index: %w", err)
		}
		if _, err := idx.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("failed to recreate index: %w", err)
		}
	}

	embedder, err := embeddings.New(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		Timeout: cfg.Embeddings.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create embeddings client: %w", err)
	}

	fmt.Printf("Embedding %d documents...\n", len(docs))
	start := time.Now()

	vectors, err := embedDocuments(ctx, embedder, docs)
	if err != nil {
		return fmt.Errorf("failed to embed corpus: %w", err)
	}

	if err := idx.AddDocuments(ctx, docs, vectors); err != nil {
		return fmt.Errorf("failed to populate index: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Docs indexed: %d\n", len(docs))
	fmt.Printf("  Duration:     %v\n", time.Since(start))

	return nil
}

func embedDocuments(ctx context.Context, embedder *embeddings.Client, docs []models.Document) ([][]float32, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	return embedder.EmbedTexts(ctx, texts)
}
