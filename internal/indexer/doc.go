// Package indexer crawls collection folders into the document index.
//
// Files matching a collection's glob pattern are read concurrently,
// hashed with SHA-256, and upserted only when their content changed.
// Every content change or file removal invalidates cached rerank scores
// keyed by the old hash, so the cache never serves scores for content
// that no longer exists.
//
// A process-wide lock allows only one indexing operation at a time.
package indexer
