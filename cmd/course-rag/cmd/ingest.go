package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursebot/course-rag/internal/corpus"
	"github.com/coursebot/course-rag/internal/forum"
	"github.com/coursebot/course-rag/internal/storage"
)

var ingestOutput string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the document corpus",
	Long: `Build the document corpus from the configured course notes and
the forum category, deduplicated by URL, and write it to a JSON file.

Forum access requires the _T_COOKIE and _FORUM_SESSION environment
variables (session cookies of a logged-in forum account).

Examples:
  # Build the corpus into the configured file
  course-rag ingest

  # Write to a different file
  course-rag ingest --output /tmp/articles.json`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestOutput, "output", "", "Corpus output file (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	slog.Debug("ingest command starting", "sources", len(cfg.Corpus.MarkdownSources))

	forumClient, err := forum.New(forum.Config{
		BaseURL:     cfg.Forum.BaseURL,
		CategoryURL: cfg.Forum.CategoryURL,
		TCookie:     cfg.Forum.TCookie,
		Session:     cfg.Forum.Session,
		Timeout:     cfg.Forum.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create forum client: %w", err)
	}

	builder, err := corpus.NewBuilder(corpus.Config{
		MarkdownSources: cfg.Corpus.MarkdownSources,
		MarkdownBaseURL: cfg.Corpus.MarkdownBaseURL,
		NotesDomains:    cfg.Corpus.NotesDomains,
		AcceptedAfter:   cfg.Corpus.AcceptedAfter,
		AcceptedBefore:  cfg.Corpus.AcceptedBefore,
		Timeout:         cfg.Forum.Timeout,
	}, forumClient)
	if err != nil {
		return fmt.Errorf("failed to create corpus builder: %w", err)
	}

	fmt.Println("Building corpus...")

	result, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("corpus build failed: %w", err)
	}

	output := ingestOutput
	if output == "" {
		output = cfg.Corpus.File
	}
	if err := corpus.Save(output, result.Documents); err != nil {
		return fmt.Errorf("failed to save corpus: %w", err)
	}

	fmt.Printf("\nCorpus build complete:\n")
	fmt.Printf("  Documents: %d\n", len(result.Documents))
	fmt.Printf("  Duration:  %v\n", result.Duration)
	fmt.Printf("  Output:    %s\n", output)

	if len(result.Skipped) > 0 {
		fmt.Printf("  Skipped: %d\n", len(result.Skipped))
		for _, reason := range result.Skipped {
			fmt.Printf("    - %s\n", reason)
		}
	}

	// Optionally archive the corpus to S3
	if cfg.Storage.Endpoint != "" {
		storageClient, err := storage.New(storage.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Bucket:          cfg.Storage.Bucket,
			Object:          cfg.Storage.Object,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UseSSL:          cfg.Storage.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := storageClient.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure bucket: %w", err)
		}
		if err := storageClient.PutCorpus(ctx, result.Documents); err != nil {
			return fmt.Errorf("failed to upload corpus: %w", err)
		}
		fmt.Printf("  Uploaded to s3://%s/%s\n", storageClient.Bucket(), cfg.Storage.Object)
	}

	return nil
}
