package mcpsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/coursebot/course-rag/internal/embeddings"
	"github.com/coursebot/course-rag/internal/index"
	"github.com/coursebot/course-rag/pkg/models"
)

// Embedder turns a text query into a vector for index search.
type Embedder interface {
	Embed(ctx context.Context, input embeddings.Input) ([]float32, error)
}

// Index is the vector index surface the MCP tools need.
type Index interface {
	Query(ctx context.Context, vector []float32, k int) ([]models.RetrievedMatch, error)
	GetDocument(ctx context.Context, id int) (*index.Entry, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Server exposes the indexed corpus over MCP so agent clients can
// search it directly, without going through the HTTP API.
type Server struct {
	mcpServer *server.MCPServer
	embedder  Embedder
	index     Index
}

// NewServer creates a new MCP server with corpus search tools.
func NewServer(config Config, embedder Embedder, idx Index) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		embedder:  embedder,
		index:     idx,
	}

	searchTool := mcp.NewTool("search_corpus",
		mcp.WithDescription("Search indexed course material and forum threads by semantic similarity. Returns matching passages with source URLs."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 3)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	getDocTool := mcp.NewTool("get_document",
		mcp.WithDescription("Get a specific corpus document by its numeric ID"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Document ID to retrieve"),
		),
	)
	mcpServer.AddTool(getDocTool, s.getDocumentHandler)

	return s
}

// searchHandler handles the search_corpus tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := req.GetInt("limit", 3)

	matches, err := s.handleSearch(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	result, err := json.Marshal(matches)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// getDocumentHandler handles the get_document tool call.
func (s *Server) getDocumentHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawID, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid document id: %q", rawID)), nil
	}

	doc, err := s.handleGetDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get document failed: %v", err)), nil
	}

	if doc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("document not found: %d", id)), nil
	}

	result, err := json.Marshal(doc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal document: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// handleSearch embeds the query and runs a nearest-neighbor search.
func (s *Server) handleSearch(ctx context.Context, query string, limit int) ([]models.RetrievedMatch, error) {
	vector, err := s.embedder.Embed(ctx, embeddings.Text(query))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.index.Query(ctx, vector, limit)
}

// handleGetDocument retrieves a document by ID.
func (s *Server) handleGetDocument(ctx context.Context, id int) (*index.Entry, error) {
	return s.index.GetDocument(ctx, id)
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
