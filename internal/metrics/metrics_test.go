package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })
	return rec
}

func TestRecordStoresHashNotQuery(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecorder(t)

	query := "how do I rotate my api keys"
	require.NoError(t, rec.Record(ctx, SearchMetrics{
		Query:       query,
		ResultCount: 3,
		TopScore:    0.9,
		Latency:     120 * time.Millisecond,
	}))

	var hash string
	var length int
	require.NoError(t, rec.db.QueryRow(
		`SELECT query_hash, query_length FROM search_metrics`).Scan(&hash, &length))

	assert.Len(t, hash, 16)
	assert.NotContains(t, hash, "rotate")
	assert.Equal(t, len(query), length)

	// The raw query text must not appear anywhere in the row
	var count int
	require.NoError(t, rec.db.QueryRow(
		`SELECT COUNT(*) FROM search_metrics WHERE query_hash LIKE ?`,
		"%"+query+"%").Scan(&count))
	assert.Zero(t, count)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecorder(t)

	searches := []SearchMetrics{
		{Query: "a", ResultCount: 10, Latency: 100 * time.Millisecond, UsedExpansion: true, ExpansionCacheHit: true},
		{Query: "b", ResultCount: 4, Latency: 300 * time.Millisecond, UsedExpansion: true},
		{Query: "c", ResultCount: 0, Latency: 50 * time.Millisecond, Degraded: true},
	}
	for _, m := range searches {
		require.NoError(t, rec.Record(ctx, m))
	}

	s, err := rec.Summarize(ctx, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Searches)
	assert.InDelta(t, 150.0, s.AvgLatencyMS, 0.1)
	assert.InDelta(t, 14.0/3, s.AvgResults, 0.01)
	assert.InDelta(t, 1.0/3, s.ExpansionHitRate, 0.01)
	assert.Equal(t, 1, s.DegradedCount)
}

func TestSummarizeEmptyWindow(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecorder(t)

	require.NoError(t, rec.Record(ctx, SearchMetrics{Query: "old", Latency: time.Millisecond}))

	// A window ending before the record was written sees nothing
	s, err := rec.Summarize(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Zero(t, s.Searches)
	assert.Zero(t, s.AvgLatencyMS)
	assert.Zero(t, s.DegradedCount)
}
