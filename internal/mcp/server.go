package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/minirag/internal/retriever"
	"github.com/bull/minirag/internal/storage"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	logger *slog.Logger
}

// Config holds server dependencies.
type Config struct {
	Retriever   *retriever.Retriever
	Collections *storage.Collections // optional, listed by get_index_status
	Logger      *slog.Logger
	Version     string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "minirag",
		Version: version,
	}, nil)

	store := cfg.Retriever.Store()

	mcp.AddTool(server, &mcp.Tool{
		Name:        "retrieve_chunks",
		Description: "Find the document excerpts most relevant to a question. Returns chunk texts ranked by semantic similarity, closest first.",
	}, makeRetrieveHandler(cfg.Retriever, logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_chunks",
		Description: "List indexed chunks in ingestion order with their source document and a short preview.",
	}, makeListHandler(store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the current status of the index: collection name, chunk count and ingested source documents.",
	}, makeStatusHandler(store, cfg.Collections))

	return &Server{server: server, logger: logger}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
