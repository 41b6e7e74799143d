package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursebot/course-rag/internal/answer"
	"github.com/coursebot/course-rag/internal/embeddings"
	"github.com/coursebot/course-rag/internal/index"
	"github.com/coursebot/course-rag/internal/oracle"
	"github.com/coursebot/course-rag/internal/retrieval"
	"github.com/coursebot/course-rag/pkg/models"
)

var (
	askImage  string
	askLink   string
	askFormat string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question",
	Long: `Answer a single question against the indexed corpus, without
starting the HTTP server.

Examples:
  # Basic question
  course-rag ask "When is the project deadline?"

  # Include a screenshot and a forum thread as extra signals
  course-rag ask "What does this error mean?" --image error.png --link https://discourse.onlinedegree.iitm.ac.in/t/ga4/1234

  # JSON output for scripting
  course-rag ask "What model should I use?" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askImage, "image", "", "Path to an image file to include as a query signal")
	askCmd.Flags().StringVar(&askLink, "link", "", "URL of a related page to include as a query signal")
	askCmd.Flags().StringVar(&askFormat, "format", "text", "Output format: text or json")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

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

	oracleClient, err := oracle.New(oracle.Config{
		BaseURL: cfg.Oracle.BaseURL,
		APIKey:  cfg.Oracle.APIKey,
		Model:   cfg.Oracle.Model,
		Timeout: cfg.Oracle.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create oracle client: %w", err)
	}

	req := models.UserRequest{
		Question: args[0],
		Link:     askLink,
	}
	if askImage != "" {
		data, err := os.ReadFile(askImage)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		req.Image = base64.StdEncoding.EncodeToString(data)
	}

	retriever := retrieval.New(embedder, idx, retrieval.Config{
		SearchDepth: cfg.Retrieval.SearchDepth,
	})
	evidence, err := retriever.Retrieve(ctx, req)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	result := answer.New(oracleClient).Answer(ctx, evidence, req.Question)

	if askFormat == "json" {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(result.Answer)
	if len(result.Links) > 0 {
		fmt.Println("\nSources:")
		for _, link := range result.Links {
			fmt.Printf("  - %s\n", link.URL)
		}
	}
	return nil
}
