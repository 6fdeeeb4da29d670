package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/dshills/localseek/internal/storage"
)

const (
	// memoryTierSize bounds each in-memory LRU tier
	memoryTierSize = 1024

	// pruneBatchSize is how many rows each prune iteration deletes per table
	pruneBatchSize = 50
)

const schema = `
CREATE TABLE IF NOT EXISTS expansion_cache (
    query_hash TEXT PRIMARY KEY,
    query TEXT NOT NULL,
    expansions TEXT NOT NULL,
    model_version TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    hit_count INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_expansion_created ON expansion_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_expansion_model ON expansion_cache(model_version);

CREATE TABLE IF NOT EXISTS rerank_cache (
    cache_key TEXT PRIMARY KEY,
    query_hash TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    score REAL NOT NULL,
    model_version TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_rerank_content ON rerank_cache(content_hash);
CREATE INDEX IF NOT EXISTS idx_rerank_created ON rerank_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_rerank_model ON rerank_cache(model_version);
`

// Store is the two-tier cache for query expansions and rerank scores: an
// in-memory LRU tier in front of two durable SQLite tables. The Store is
// the only writer of both entry types; the Expander and Reranker hold no
// state of their own.
type Store struct {
	db     *sql.DB
	dbPath string

	expMem   *lru.Cache[string, []string]
	scoreMem *lru.Cache[string, float64]

	// invMu orders reads against invalidation: a read-through (DB row plus
	// memory re-populate) holds the read side, so a purge-then-delete can
	// never interleave with it and resurrect a deleted entry in memory.
	invMu sync.RWMutex

	retry  RetryConfig
	logger *zap.Logger
}

// QueryHash returns the stable digest of the normalized (lowercased,
// whitespace-collapsed) query text. It partitions both caches.
func QueryHash(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// RerankKey derives the rerank cache key from a query hash and a document
// content hash.
func RerankKey(queryHash, contentHash string) string {
	sum := sha256.Sum256([]byte(queryHash + ":" + contentHash))
	return hex.EncodeToString(sum[:])
}

// Open opens (creating if needed) the cache database at dbPath. Use
// ":memory:" for tests.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open(storage.DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Single writer; incremental vacuum so pruning can actually shrink
	// the file
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA auto_vacuum=INCREMENTAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure cache database: %w", err)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	expMem, err := lru.New[string, []string](memoryTierSize)
	if err != nil {
		return nil, err
	}
	scoreMem, err := lru.New[string, float64](memoryTierSize)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:       db,
		dbPath:   dbPath,
		expMem:   expMem,
		scoreMem: scoreMem,
		retry:    DefaultRetryConfig(),
		logger:   logger,
	}, nil
}

// Close closes the cache database
func (s *Store) Close() error {
	return s.db.Close()
}

// Expansion cache

// GetExpansions returns the cached expansions for a query hash under the
// given model version. The second return value is false on a miss. Every
// hit increments the entry's hit count.
func (s *Store) GetExpansions(ctx context.Context, queryHash, modelVersion string) ([]string, bool, error) {
	s.invMu.RLock()
	defer s.invMu.RUnlock()

	memKey := modelVersion + "|" + queryHash
	if expansions, ok := s.expMem.Get(memKey); ok {
		s.bumpHitCount(ctx, queryHash)
		return expansions, true, nil
	}

	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT expansions FROM expansion_cache WHERE query_hash = ? AND model_version = ?",
		queryHash, modelVersion).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		// Read errors are misses, not failures
		return nil, false, err
	}

	var expansions []string
	if err := json.Unmarshal([]byte(raw), &expansions); err != nil {
		return nil, false, fmt.Errorf("corrupt expansion entry %s: %w", queryHash, err)
	}

	s.bumpHitCount(ctx, queryHash)
	s.expMem.Add(memKey, expansions)
	return expansions, true, nil
}

// PutExpansions upserts the expansion entry for a query hash. Overwriting
// resets created_at and the hit count, since the content under a new model
// version is different.
func (s *Store) PutExpansions(ctx context.Context, queryHash, originalQuery string, expansions []string, modelVersion string) error {
	raw, err := json.Marshal(expansions)
	if err != nil {
		return err
	}

	s.invMu.RLock()
	defer s.invMu.RUnlock()

	_, err = retryBusy(ctx, s.retry, func() (struct{}, error) {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO expansion_cache (query_hash, query, expansions, model_version, created_at, hit_count)
			VALUES (?, ?, ?, ?, ?, 0)
			ON CONFLICT(query_hash) DO UPDATE SET
				query = excluded.query,
				expansions = excluded.expansions,
				model_version = excluded.model_version,
				created_at = excluded.created_at,
				hit_count = 0
		`, queryHash, originalQuery, string(raw), modelVersion, time.Now())
		return struct{}{}, execErr
	})
	if err != nil {
		return fmt.Errorf("failed to store expansions: %w", err)
	}

	s.expMem.Add(modelVersion+"|"+queryHash, expansions)
	return nil
}

func (s *Store) bumpHitCount(ctx context.Context, queryHash string) {
	_, err := retryBusy(ctx, s.retry, func() (struct{}, error) {
		_, execErr := s.db.ExecContext(ctx,
			"UPDATE expansion_cache SET hit_count = hit_count + 1 WHERE query_hash = ?", queryHash)
		return struct{}{}, execErr
	})
	if err != nil {
		s.logger.Warn("failed to update expansion hit count", zap.Error(err))
	}
}

// Rerank score cache

// GetRerankScore returns the cached LLM relevance score for a
// (query, document content) pair under the given model version.
func (s *Store) GetRerankScore(ctx context.Context, queryHash, contentHash, modelVersion string) (float64, bool, error) {
	s.invMu.RLock()
	defer s.invMu.RUnlock()

	key := RerankKey(queryHash, contentHash)
	memKey := modelVersion + "|" + key
	if score, ok := s.scoreMem.Get(memKey); ok {
		return score, true, nil
	}

	var score float64
	err := s.db.QueryRowContext(ctx,
		"SELECT score FROM rerank_cache WHERE cache_key = ? AND model_version = ?",
		key, modelVersion).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	s.scoreMem.Add(memKey, score)
	return score, true, nil
}

// PutRerankScore upserts the score for a (query, document content) pair.
// Concurrent writers racing on the same key are harmless: values for a
// fixed key and model version are expected to be equivalent, so
// last-writer-wins is acceptable.
func (s *Store) PutRerankScore(ctx context.Context, queryHash, contentHash string, score float64, modelVersion string) error {
	s.invMu.RLock()
	defer s.invMu.RUnlock()

	key := RerankKey(queryHash, contentHash)

	_, err := retryBusy(ctx, s.retry, func() (struct{}, error) {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO rerank_cache (cache_key, query_hash, content_hash, score, model_version, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(cache_key) DO UPDATE SET
				score = excluded.score,
				model_version = excluded.model_version,
				created_at = excluded.created_at
		`, key, queryHash, contentHash, score, modelVersion, time.Now())
		return struct{}{}, execErr
	})
	if err != nil {
		return fmt.Errorf("failed to store rerank score: %w", err)
	}

	s.scoreMem.Add(modelVersion+"|"+key, score)
	return nil
}

// Invalidation

// InvalidateDocument deletes every rerank entry keyed by the old content
// hash. Called by the indexer when a document's content changes or the
// document is deleted. The write lock excludes in-flight read-throughs, so
// once this returns a subsequent read can never see an invalidated score.
func (s *Store) InvalidateDocument(ctx context.Context, oldContentHash string) error {
	s.invMu.Lock()
	defer s.invMu.Unlock()

	_, err := retryBusy(ctx, s.retry, func() (struct{}, error) {
		_, execErr := s.db.ExecContext(ctx,
			"DELETE FROM rerank_cache WHERE content_hash = ?", oldContentHash)
		return struct{}{}, execErr
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate document: %w", err)
	}
	s.scoreMem.Purge()
	return nil
}

// InvalidateModelVersion deletes all entries produced by the given model
// version from both caches.
func (s *Store) InvalidateModelVersion(ctx context.Context, version string) error {
	s.invMu.Lock()
	defer s.invMu.Unlock()

	_, err := retryBusy(ctx, s.retry, func() (struct{}, error) {
		if _, execErr := s.db.ExecContext(ctx,
			"DELETE FROM expansion_cache WHERE model_version = ?", version); execErr != nil {
			return struct{}{}, execErr
		}
		_, execErr := s.db.ExecContext(ctx,
			"DELETE FROM rerank_cache WHERE model_version = ?", version)
		return struct{}{}, execErr
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate model version: %w", err)
	}
	s.expMem.Purge()
	s.scoreMem.Purge()
	return nil
}

// Clear removes every entry from both caches
func (s *Store) Clear(ctx context.Context) error {
	s.invMu.Lock()
	defer s.invMu.Unlock()

	for _, table := range []string{"expansion_cache", "rerank_cache"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	s.expMem.Purge()
	s.scoreMem.Purge()
	return nil
}

// Prune deletes entries older than maxAgeDays (when > 0) and, while the
// store exceeds maxSizeBytes (when > 0), deletes oldest-first batches from
// both tables until under budget.
func (s *Store) Prune(ctx context.Context, maxAgeDays int, maxSizeBytes int64) error {
	s.invMu.Lock()
	defer s.invMu.Unlock()

	s.expMem.Purge()
	s.scoreMem.Purge()

	if maxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
		for _, table := range []string{"expansion_cache", "rerank_cache"} {
			if _, err := s.db.ExecContext(ctx,
				"DELETE FROM "+table+" WHERE created_at < ?", cutoff); err != nil {
				return fmt.Errorf("failed to prune %s by age: %w", table, err)
			}
		}
		if _, err := s.db.ExecContext(ctx, "PRAGMA incremental_vacuum"); err != nil {
			s.logger.Warn("incremental vacuum failed", zap.Error(err))
		}
	}

	if maxSizeBytes <= 0 {
		return nil
	}

	for {
		size, err := s.sizeBytes(ctx)
		if err != nil {
			return err
		}
		if size <= maxSizeBytes {
			return nil
		}

		deleted := int64(0)
		for _, table := range []string{"expansion_cache", "rerank_cache"} {
			result, err := s.db.ExecContext(ctx, `
				DELETE FROM `+table+` WHERE rowid IN (
					SELECT rowid FROM `+table+` ORDER BY created_at ASC LIMIT ?
				)`, pruneBatchSize)
			if err != nil {
				return fmt.Errorf("failed to prune %s by size: %w", table, err)
			}
			n, _ := result.RowsAffected()
			deleted += n
		}
		if deleted == 0 {
			// Nothing left to delete, give up on the budget
			return nil
		}
		if _, err := s.db.ExecContext(ctx, "PRAGMA incremental_vacuum"); err != nil {
			s.logger.Warn("incremental vacuum failed", zap.Error(err))
			return nil
		}
	}
}

// sizeBytes reports the database size from page pragmas so in-memory
// databases account correctly too.
func (s *Store) sizeBytes(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, err
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, err
	}
	return pageCount * pageSize, nil
}

// Stats

// Stats summarizes cache contents
type Stats struct {
	ExpansionEntries int
	RerankEntries    int
	TotalHits        int64
	SizeBytes        int64
	DBPath           string
}

// Stats returns entry counts, accumulated hits, and store size
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{DBPath: s.dbPath}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM expansion_cache").Scan(&stats.ExpansionEntries); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rerank_cache").Scan(&stats.RerankEntries); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(hit_count), 0) FROM expansion_cache").Scan(&stats.TotalHits); err != nil {
		return nil, err
	}

	size, err := s.sizeBytes(ctx)
	if err != nil {
		return nil, err
	}
	stats.SizeBytes = size

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.SizeBytes = info.Size()
	}

	return stats, nil
}

// ExpansionEntry is a row of the expansion cache, exposed for inspection
type ExpansionEntry struct {
	QueryHash    string
	Query        string
	Expansions   []string
	ModelVersion string
	CreatedAt    time.Time
	HitCount     int
}

// GetExpansionEntry returns the full expansion row for a query hash,
// bypassing the memory tier. Intended for diagnostics and tests.
func (s *Store) GetExpansionEntry(ctx context.Context, queryHash string) (*ExpansionEntry, error) {
	var entry ExpansionEntry
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT query_hash, query, expansions, model_version, created_at, hit_count
		FROM expansion_cache WHERE query_hash = ?`, queryHash).Scan(
		&entry.QueryHash, &entry.Query, &raw, &entry.ModelVersion,
		&entry.CreatedAt, &entry.HitCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &entry.Expansions); err != nil {
		return nil, err
	}
	return &entry, nil
}
