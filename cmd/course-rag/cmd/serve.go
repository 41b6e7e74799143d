package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursebot/course-rag/internal/answer"
	"github.com/coursebot/course-rag/internal/config"
	"github.com/coursebot/course-rag/internal/corpus"
	"github.com/coursebot/course-rag/internal/embeddings"
	"github.com/coursebot/course-rag/internal/index"
	"github.com/coursebot/course-rag/internal/oracle"
	"github.com/coursebot/course-rag/internal/retrieval"
	"github.com/coursebot/course-rag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the question-answering HTTP API",
	Long: `Start the HTTP API.

On startup, if the vector index does not exist yet and the corpus
file is present, the index is created and populated before serving.

Endpoints:
  POST /api/  Answer a question (JSON body with question, optional image and link)
  GET  /      Render the local README

Requires the ORACLE_API_KEY environment variable.

Example:
  course-rag serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	// All collaborators are built once here and shared across requests.
	embedder, err := embeddings.New(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		Timeout: cfg.Embeddings.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create embeddings client: %w", err)
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

	if err := populateIfFresh(ctx, &cfg, embedder, idx); err != nil {
		return err
	}

	oracleClient, err := oracle.New(oracle.Config{
		BaseURL: cfg.Oracle.BaseURL,
		APIKey:  cfg.Oracle.APIKey,
		Model:   cfg.Oracle.Model,
		Timeout: cfg.Oracle.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create oracle client: %w", err)
	}

	retriever := retrieval.New(embedder, idx, retrieval.Config{
		SearchDepth: cfg.Retrieval.SearchDepth,
	})
	assembler := answer.New(oracleClient)

	srv := server.New(server.Config{
		Addr:       cfg.Server.Addr,
		ReadmePath: cfg.Server.ReadmePath,
	}, retriever, assembler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// populateIfFresh populates a newly created index from the corpus file.
// An existing index is left untouched; a missing corpus file only
// warns, the API still serves against whatever the index holds.
func populateIfFresh(ctx context.Context, cfg *config.Config, embedder *embeddings.Client, idx *index.Client) error {
	created, err := idx.EnsureIndex(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure index: %w", err)
	}
	if !created {
		slog.Debug("index already populated", "index", cfg.Index.Name)
		return nil
	}

	docs, err := corpus.Load(cfg.Corpus.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("corpus file not found, serving with empty index", "file", cfg.Corpus.File)
			return nil
		}
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	slog.Info("populating fresh index", "index", cfg.Index.Name, "docs", len(docs))

	vectors, err := embedDocuments(ctx, embedder, docs)
	if err != nil {
		return fmt.Errorf("failed to embed corpus: %w", err)
	}
	if err := idx.AddDocuments(ctx, docs, vectors); err != nil {
		return fmt.Errorf("failed to populate index: %w", err)
	}
	return nil
}
