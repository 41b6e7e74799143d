package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coursebot/course-rag/internal/embeddings"
	"github.com/coursebot/course-rag/internal/index"
	"github.com/coursebot/course-rag/internal/mcpsrv"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the MCP server for corpus search.

The server communicates via stdio and provides two tools:
  - search_corpus: Search indexed course material by semantic similarity
  - get_document: Get a specific corpus document by ID

Example:
  course-rag mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
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

	server := mcpsrv.NewServer(mcpsrv.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}, embedder, idx)

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
