package storage

import (
	"context"
	"time"

	"github.com/dshills/localseek/pkg/types"
)

// Storage defines the interface for persisting and querying indexed documents.
// SearchText is the full-text retrieval primitive consumed by the search
// pipeline; everything else serves the indexer and the CLI.
type Storage interface {
	// Collection operations
	CreateCollection(ctx context.Context, collection *Collection) error
	GetCollection(ctx context.Context, name string) (*Collection, error)
	UpdateCollection(ctx context.Context, collection *Collection) error
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]*CollectionInfo, error)

	// Document operations
	UpsertDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, collectionID int64, path string) (*Document, error)
	GetDocumentByPath(ctx context.Context, path, collection string) (*Document, error)
	ListDocumentPaths(ctx context.Context, collectionID int64) (map[string]string, error)
	DeleteDocument(ctx context.Context, docID int64) error

	// SearchText runs an FTS5 BM25 query, best-first. Deterministic for
	// identical inputs over an unchanged index.
	SearchText(ctx context.Context, query, collection string, limit int, minScore float64) ([]types.Candidate, error)

	// GetContent fetches document content for snippet generation
	GetContent(ctx context.Context, docID int64) (string, error)

	// Status operations
	Stats(ctx context.Context) (*IndexStats, error)

	Close() error
}

// Collection represents an indexed folder of documents
type Collection struct {
	ID          int64
	Name        string
	Path        string
	GlobPattern string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CollectionInfo is a collection with its document count
type CollectionInfo struct {
	Collection
	DocCount int
}

// Document represents an indexed text file
type Document struct {
	ID           int64
	CollectionID int64
	Path         string // Relative to the collection root
	Title        string
	Content      string
	ContentHash  string
	IndexedAt    time.Time
}

// IndexStats contains statistics about the index database
type IndexStats struct {
	DBPath      string
	DBSizeBytes int64
	Collections int
	Documents   int
}
