package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dshills/localseek/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite FTS5
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Collection operations

func (s *SQLiteStorage) CreateCollection(ctx context.Context, collection *Collection) error {
	query := `
		INSERT INTO collections (name, path, glob_pattern, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		collection.Name, collection.Path, collection.GlobPattern, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("collection %q: %w", collection.Name, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	collection.ID = id
	collection.CreatedAt = now
	collection.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) GetCollection(ctx context.Context, name string) (*Collection, error) {
	query := `
		SELECT id, name, path, glob_pattern, created_at, updated_at
		FROM collections
		WHERE name = ?
	`
	var c Collection
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&c.ID, &c.Name, &c.Path, &c.GlobPattern, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStorage) UpdateCollection(ctx context.Context, collection *Collection) error {
	query := `
		UPDATE collections
		SET path = ?, glob_pattern = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		collection.Path, collection.GlobPattern, now, collection.ID)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	collection.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) DeleteCollection(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*CollectionInfo, error) {
	query := `
		SELECT c.id, c.name, c.path, c.glob_pattern, c.created_at, c.updated_at,
		       COUNT(d.id) AS doc_count
		FROM collections c
		LEFT JOIN documents d ON d.collection_id = c.id
		GROUP BY c.id
		ORDER BY c.name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	collections := make([]*CollectionInfo, 0)
	for rows.Next() {
		var ci CollectionInfo
		err := rows.Scan(&ci.ID, &ci.Name, &ci.Path, &ci.GlobPattern,
			&ci.CreatedAt, &ci.UpdatedAt, &ci.DocCount)
		if err != nil {
			return nil, err
		}
		collections = append(collections, &ci)
	}
	return collections, rows.Err()
}

// Document operations

func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (collection_id, path, title, content, content_hash, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, path) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			indexed_at = excluded.indexed_at
	`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		doc.CollectionID, doc.Path, doc.Title, doc.Content, doc.ContentHash, now)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	// The upsert path doesn't report the row id, fetch it explicitly
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE collection_id = ? AND path = ?",
		doc.CollectionID, doc.Path).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve document id: %w", err)
	}
	doc.IndexedAt = now
	return nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, collectionID int64, path string) (*Document, error) {
	query := `
		SELECT id, collection_id, path, title, content, content_hash, indexed_at
		FROM documents
		WHERE collection_id = ? AND path = ?
	`
	var doc Document
	err := s.db.QueryRowContext(ctx, query, collectionID, path).Scan(
		&doc.ID, &doc.CollectionID, &doc.Path, &doc.Title,
		&doc.Content, &doc.ContentHash, &doc.IndexedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocumentByPath looks a document up by its relative path, optionally
// restricted to a collection.
func (s *SQLiteStorage) GetDocumentByPath(ctx context.Context, path, collection string) (*Document, error) {
	query := `
		SELECT d.id, d.collection_id, d.path, d.title, d.content, d.content_hash, d.indexed_at
		FROM documents d
		JOIN collections c ON c.id = d.collection_id
		WHERE d.path = ?
	`
	args := []any{path}
	if collection != "" {
		query += " AND c.name = ?"
		args = append(args, collection)
	}

	var doc Document
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&doc.ID, &doc.CollectionID, &doc.Path, &doc.Title,
		&doc.Content, &doc.ContentHash, &doc.IndexedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocumentPaths returns path -> content hash for every document in a
// collection. Used by the indexer to detect changed and removed files.
func (s *SQLiteStorage) ListDocumentPaths(ctx context.Context, collectionID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, content_hash FROM documents WHERE collection_id = ?", collectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	paths := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		paths[path] = hash
	}
	return paths, rows.Err()
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, docID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", docID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetContent(ctx context.Context, docID int64) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		"SELECT content FROM documents WHERE id = ?", docID).Scan(&content)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return content, err
}

// Search operations

// SearchText runs an FTS5 query ranked by BM25. SQLite's bm25() returns
// negative values where more negative is better, so scores are negated on
// the way out. Results are ordered best-first with rowid as the stable
// tie-break, which keeps identical queries deterministic over an unchanged
// index.
func (s *SQLiteStorage) SearchText(ctx context.Context, query, collection string, limit int, minScore float64) ([]types.Candidate, error) {
	ftsQuery := prepareQuery(query)
	if strings.TrimSpace(ftsQuery) == "" {
		return nil, nil
	}

	sqlQuery := `
		SELECT d.id, d.path, d.title, d.content_hash, c.name AS collection,
		       bm25(documents_fts) AS score
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.rowid
		JOIN collections c ON c.id = d.collection_id
		WHERE documents_fts MATCH ?
	`
	args := []any{ftsQuery}

	if collection != "" {
		sqlQuery += " AND c.name = ?"
		args = append(args, collection)
	}

	if minScore > 0 {
		// bm25() is negative, more negative = better match
		sqlQuery += " AND bm25(documents_fts) <= ?"
		args = append(args, -minScore)
	}

	sqlQuery += " ORDER BY score, d.id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("fts query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.Candidate, 0, limit)
	for rows.Next() {
		var c types.Candidate
		var score float64
		err := rows.Scan(&c.DocumentID, &c.Path, &c.Title, &c.ContentHash, &c.Collection, &score)
		if err != nil {
			return nil, err
		}
		c.BM25Score = math.Abs(score)
		c.SourceQuery = query
		results = append(results, c)
	}
	return results, rows.Err()
}

// prepareQuery prepares a raw query for FTS5.
//
// Queries that already contain FTS5 operators (quotes, OR, NOT, prefix
// globs, NEAR) pass through untouched; plain queries are trimmed and FTS5
// ANDs the tokens together by default.
func prepareQuery(query string) string {
	for _, op := range []string{`"`, "OR", "AND", "NOT", "*", "NEAR"} {
		if strings.Contains(query, op) {
			return query
		}
	}
	return strings.TrimSpace(query)
}

// Status operations

func (s *SQLiteStorage) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{DBPath: s.dbPath}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM collections").Scan(&stats.Collections); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&stats.Documents); err != nil {
		return nil, err
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DBSizeBytes = info.Size()
	}

	return stats, nil
}
