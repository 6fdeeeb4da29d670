// Package types provides shared type definitions for localseek.
//
// This package defines the entities that flow through the retrieval
// pipeline: candidates produced by the full-text retriever, fused results
// produced by rank fusion, and the reranked results returned to callers.
//
// # Pipeline Entities
//
// Candidate represents a single retriever hit for one query variant:
//
//	cand := types.Candidate{
//	    DocumentID:  42,
//	    Path:        "notes/decisions.md",
//	    ContentHash: "9f2c...",
//	    BM25Score:   4.31,
//	    SourceQuery: "decision making",
//	}
//
// FusedResult reconciles candidates for the same document across variants
// via Reciprocal Rank Fusion. RerankedResult is the terminal entity; when
// reranking is disabled or unavailable its FinalScore equals the fused
// score and Reranked is false.
//
// All pipeline entities are ephemeral: they live only for the duration of
// one search call and are never persisted.
package types
