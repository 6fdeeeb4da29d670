package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/localseek/internal/pipeline"
	"github.com/dshills/localseek/internal/summarize"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", pipeline.DefaultLimit)
	if limit < 1 || limit > pipeline.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams,
			fmt.Sprintf("limit must be between 1 and %d", pipeline.MaxLimit), map[string]interface{}{
				"param": "limit",
				"value": limit,
			})
	}

	resp, err := s.pipeline.Search(ctx, pipeline.Request{
		Query:      query,
		Collection: getStringDefault(args, "collection", ""),
		Limit:      limit,
		MinScore:   getFloatDefault(args, "min_score", 0),
		Expand:     getBoolDefault(args, "expand", true),
		Rerank:     getBoolDefault(args, "rerank", true),
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for i, r := range resp.Results {
		entry := map[string]interface{}{
			"rank":       i + 1,
			"path":       r.Path,
			"title":      r.Title,
			"collection": r.Collection,
			"score":      r.FinalScore,
			"snippet":    r.Snippet,
		}
		if r.Reranked {
			entry["llm_score"] = r.LLMScore
		}
		results = append(results, entry)
	}

	response := map[string]interface{}{
		"results":        results,
		"total":          resp.Total,
		"query_variants": resp.Variants,
		"used_expansion": resp.UsedExpansion,
		"used_rerank":    resp.UsedRerank,
		"duration_ms":    resp.Duration.Milliseconds(),
	}

	degraded := resp.ExpansionDegraded || resp.RerankDegraded
	if getBoolDefault(args, "summarize", false) && s.summarizer != nil {
		summary := s.summarizer.Summarize(ctx, query, resp.Results, summarize.DefaultMaxResults)
		if summary.Summary != "" {
			response["summary"] = summary.Summary
		}
		degraded = degraded || summary.Degraded
	}
	if degraded {
		response["degraded"] = true
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexCollection handles the index_collection tool invocation
func (s *Server) handleIndexCollection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	name := getStringDefault(args, "name", filepath.Base(path))
	glob := getStringDefault(args, "glob", "")

	stats, err := s.indexer.AddCollection(ctx, path, name, glob)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"collection":    name,
		"files_indexed": stats.FilesIndexed,
		"files_skipped": stats.FilesSkipped,
		"files_failed":  stats.FilesFailed,
		"files_removed": stats.FilesRemoved,
		"duration_ms":   stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	indexStats, err := s.storage.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get index status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	collections, err := s.storage.ListCollections(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list collections", map[string]interface{}{
			"error": err.Error(),
		})
	}

	collectionList := make([]map[string]interface{}, 0, len(collections))
	for _, c := range collections {
		collectionList = append(collectionList, map[string]interface{}{
			"name":      c.Name,
			"path":      c.Path,
			"glob":      c.GlobPattern,
			"documents": c.DocCount,
		})
	}

	response := map[string]interface{}{
		"index": map[string]interface{}{
			"db_path":       indexStats.DBPath,
			"collections":   indexStats.Collections,
			"documents":     indexStats.Documents,
			"db_size_bytes": indexStats.DBSizeBytes,
		},
		"collections": collectionList,
	}

	if s.cache != nil {
		cacheStats, err := s.cache.Stats(ctx)
		if err != nil {
			s.logger.Warn("failed to read cache stats")
		} else {
			response["cache"] = map[string]interface{}{
				"expansion_entries": cacheStats.ExpansionEntries,
				"rerank_entries":    cacheStats.RerankEntries,
				"total_hits":        cacheStats.TotalHits,
				"size_bytes":        cacheStats.SizeBytes,
			}
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearCache handles the clear_cache tool invocation
func (s *Server) handleClearCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cache == nil {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"cleared": false,
			"message": "caching is disabled",
		})), nil
	}

	if err := s.cache.Clear(ctx); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to clear cache", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cleared": true,
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that a path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
