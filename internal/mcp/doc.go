// Package mcp implements the Model Context Protocol (MCP) server for localseek.
//
// The MCP server exposes four tools to AI coding assistants:
//   - search_documents: Search indexed collections with optional LLM
//     query expansion, reranking, and result synthesis
//   - index_collection: Register a folder and index its documents
//   - get_status: Report collections, document counts, and cache stats
//   - clear_cache: Drop all cached expansions and rerank scores
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server reads MCP messages from stdin and writes responses to
// stdout, so any MCP-compatible client can launch it as a subprocess.
//
// # Basic Usage
//
// The server is started via the mcp command:
//
//	localseek mcp
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {
//	    "query": "how do I rotate api keys",
//	    "collection": "docs",
//	    "limit": 10,
//	    "expand": true,
//	    "rerank": true,
//	    "summarize": false
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {"rank": 1, "path": "security/keys.md", "title": "API Keys",
//	     "score": 0.71, "snippet": "...rotate keys every 90 days..."}
//	  ],
//	  "total": 1,
//	  "query_variants": ["how do I rotate api keys", "api key rotation policy"],
//	  "used_expansion": true,
//	  "used_rerank": true,
//	  "duration_ms": 840
//	}
//
// When the local LLM is unavailable the search still succeeds on plain
// BM25 fusion and the response carries "degraded": true.
//
// # Error Codes
//
// Tool failures use JSON-RPC error codes: -32602 for invalid
// parameters, -32603 for internal failures, -32002 when another
// indexing run holds the lock, -32004 for an empty query.
package mcp
