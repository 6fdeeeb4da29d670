// Package storage provides SQLite-based persistence for the document index.
//
// The index lives in a single SQLite database with an FTS5 virtual table
// kept in sync with the documents table by triggers. BM25 ranking comes
// from SQLite's built-in bm25() function; the storage layer negates its
// scores so that higher means more relevant everywhere above this package.
//
// # Schema
//
// Three content tables plus the FTS index:
//
//   - collections: named folders registered for indexing
//   - documents: one row per indexed file, with content and content hash
//   - documents_fts: FTS5 index over title and content (porter unicode61)
//   - schema_version: migration tracking
//
// # Build Modes
//
// The package compiles against one of two SQLite drivers selected by build
// tags:
//
//	CGO_ENABLED=1 go build -tags "fts5" ./...   # mattn/go-sqlite3
//	CGO_ENABLED=0 go build ./...                # modernc.org/sqlite
//
// Both provide FTS5; the cgo build is faster, the pure Go build needs no C
// toolchain.
//
// # Determinism
//
// SearchText orders by BM25 score with document rowid as the final
// tie-break, so identical queries over an unchanged index always return
// the same ordering. The fusion stage upstream depends on this.
package storage
