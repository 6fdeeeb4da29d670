package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/localseek/internal/cache"
	"github.com/dshills/localseek/internal/indexer"
	"github.com/dshills/localseek/internal/pipeline"
	"github.com/dshills/localseek/internal/storage"
	"github.com/dshills/localseek/internal/summarize"
)

const (
	// ServerName is the MCP server name
	ServerName = "localseek"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp        *server.MCPServer
	storage    storage.Storage
	cache      *cache.Store // nil when caching is disabled
	pipeline   *pipeline.Pipeline
	indexer    *indexer.Indexer
	summarizer *summarize.Summarizer // nil disables the summarize option
	logger     *zap.Logger
}

// NewServer creates an MCP server over an already-wired search stack.
// The cache store and summarizer may be nil.
func NewServer(store storage.Storage, cacheStore *cache.Store, pl *pipeline.Pipeline, idx *indexer.Indexer, sum *summarize.Summarizer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:        mcpServer,
		storage:    store,
		cache:      cacheStore,
		pipeline:   pl,
		indexer:    idx,
		summarizer: sum,
		logger:     logger,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(indexCollectionTool(), s.handleIndexCollection)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(clearCacheTool(), s.handleClearCache)
}
