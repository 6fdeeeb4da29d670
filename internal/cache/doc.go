// Package cache implements the persistent two-tier cache behind query
// expansion and LLM reranking.
//
// The durable tier is a dedicated SQLite database with two tables:
// expansion_cache keyed by the normalized query hash, and rerank_cache
// keyed by a digest of (query hash, document content hash). A bounded LRU
// tier sits in front of both for repeat lookups within a process.
//
// # Invalidation
//
// Rerank scores are only valid for the exact document content they were
// computed against. When the indexer observes a content hash change or a
// deletion it calls InvalidateDocument with the old hash, which removes
// every rerank entry for that content regardless of query. Model upgrades
// invalidate through InvalidateModelVersion; reads are additionally scoped
// by model version, so entries from an old model are unreachable even
// before cleanup runs.
//
// # Failure semantics
//
// Writes retry lock contention with bounded exponential backoff. Callers
// treat a failed write as a no-op and a failed read as a miss; cache
// trouble costs effectiveness, never search correctness.
package cache
