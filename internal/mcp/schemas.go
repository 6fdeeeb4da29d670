package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Search indexed document collections with BM25 retrieval, optional LLM query expansion, and optional LLM reranking",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or FTS5 syntax)",
				},
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Restrict the search to one collection by name",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Minimum BM25 relevance threshold; candidates below it are dropped",
					"minimum":     0.0,
				},
				"expand": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, generate query variants with the local LLM and fuse their rankings",
					"default":     true,
				},
				"rerank": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, rescore the top candidates with the local LLM",
					"default":     true,
				},
				"summarize": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include a short LLM synthesis of the top results",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexCollectionTool returns the tool definition for index_collection
func indexCollectionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_collection",
		Description: "Register a folder as a document collection and index its files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the folder to index",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Collection name (defaults to the folder name)",
				},
				"glob": map[string]interface{}{
					"type":        "string",
					"description": "Glob pattern selecting files to index",
					"default":     "**/*.md",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report indexed collections, document counts, and cache statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearCacheTool returns the tool definition for clear_cache
func clearCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_cache",
		Description: "Drop all cached query expansions and rerank scores",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
