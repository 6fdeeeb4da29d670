// Package metrics persists anonymized per-search metrics to SQLite.
//
// Only a truncated hash of the query is stored, never the query text;
// metrics exist to observe search quality over time, not behavior. A
// failed metrics write never affects a search.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dshills/localseek/internal/cache"
	"github.com/dshills/localseek/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    query_hash TEXT NOT NULL,
    query_length INTEGER NOT NULL,
    collection_filter TEXT,
    result_count INTEGER NOT NULL,
    top_score REAL NOT NULL,
    used_expansion BOOLEAN NOT NULL,
    expansion_cache_hit BOOLEAN NOT NULL,
    used_rerank BOOLEAN NOT NULL,
    rerank_cache_hits INTEGER NOT NULL,
    degraded BOOLEAN NOT NULL,
    latency_ms INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_metrics_created ON search_metrics(created_at);
`

// SearchMetrics captures one search invocation
type SearchMetrics struct {
	Query             string // Hashed before persisting
	Collection        string
	ResultCount       int
	TopScore          float64
	UsedExpansion     bool
	ExpansionCacheHit bool
	UsedRerank        bool
	RerankCacheHits   int
	Degraded          bool
	Latency           time.Duration
}

// Recorder writes search metrics to its own SQLite database
type Recorder struct {
	db *sql.DB
}

// Open opens (creating if needed) the metrics database at dbPath
func Open(dbPath string) (*Recorder, error) {
	db, err := sql.Open(storage.DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create metrics schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Close closes the metrics database
func (r *Recorder) Close() error {
	return r.db.Close()
}

// Record persists one search's metrics
func (r *Recorder) Record(ctx context.Context, m SearchMetrics) error {
	queryHash := cache.QueryHash(m.Query)[:16]

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO search_metrics (
			query_hash, query_length, collection_filter, result_count,
			top_score, used_expansion, expansion_cache_hit, used_rerank,
			rerank_cache_hits, degraded, latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		queryHash, len(m.Query), m.Collection, m.ResultCount,
		m.TopScore, m.UsedExpansion, m.ExpansionCacheHit, m.UsedRerank,
		m.RerankCacheHits, m.Degraded, m.Latency.Milliseconds(), time.Now())
	return err
}

// Summary aggregates recent metrics
type Summary struct {
	Searches         int
	AvgLatencyMS     float64
	AvgResults       float64
	ExpansionHitRate float64 // Fraction of expanded searches served from cache
	DegradedCount    int
}

// Summarize reports aggregates over the trailing window
func (r *Recorder) Summarize(ctx context.Context, window time.Duration) (*Summary, error) {
	since := time.Now().Add(-window)
	var s Summary
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(latency_ms), 0),
		       COALESCE(AVG(result_count), 0),
		       COALESCE(AVG(expansion_cache_hit), 0),
		       COALESCE(SUM(degraded), 0)
		FROM search_metrics WHERE created_at >= ?`, since).Scan(
		&s.Searches, &s.AvgLatencyMS, &s.AvgResults, &s.ExpansionHitRate, &s.DegradedCount)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
