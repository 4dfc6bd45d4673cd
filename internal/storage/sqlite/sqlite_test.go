package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightbrief/internal/briefcache"
	"github.com/yegors/flightbrief/internal/briefing"
	"github.com/yegors/flightbrief/internal/clock"
	"github.com/yegors/flightbrief/pkg/logger"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "flightbrief.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFlightCacheStorage(t *testing.T) {
	ctx := context.Background()
	store, err := NewFlightCacheStorage(openTestDB(t), logger.NewNop())
	require.NoError(t, err)

	key := briefcache.KeyFor("KBWI", "Cessna 172")
	entry, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, entry)

	created := time.Date(2025, 6, 15, 12, 10, 0, 123456000, time.UTC)
	require.NoError(t, store.Save(ctx, &briefcache.Entry{
		Key:       key,
		Payload:   []byte(`{"summary":"VFR"}`),
		CreatedAt: created,
		TTL:       40 * time.Minute,
	}))

	entry, err = store.Load(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, key, entry.Key)
	assert.Equal(t, `{"summary":"VFR"}`, string(entry.Payload))
	assert.True(t, created.Equal(entry.CreatedAt))
	assert.Equal(t, 40*time.Minute, entry.TTL)

	// Upsert replaces the row
	require.NoError(t, store.Save(ctx, &briefcache.Entry{
		Key:       key,
		Payload:   []byte(`{"summary":"IFR"}`),
		CreatedAt: created.Add(time.Hour),
		TTL:       time.Hour,
	}))
	entry, err = store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"IFR"}`, string(entry.Payload))

	n, err := store.count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFlightCacheThroughBriefCache(t *testing.T) {
	ctx := context.Background()
	store, err := NewFlightCacheStorage(openTestDB(t), logger.NewNop())
	require.NoError(t, err)

	clk := clock.NewVirtual(time.Date(2025, 6, 15, 12, 10, 0, 0, time.UTC))
	c := briefcache.New[map[string]string](store, clk, logger.NewNop())

	require.NoError(t, c.Put(ctx, "KDCA", "Boeing 737", map[string]string{"summary": "windy"}, 40*time.Minute))

	got, ok := c.Get(ctx, "KDCA", "Airbus A321")
	require.True(t, ok)
	assert.Equal(t, "windy", got["summary"])

	clk.Advance(41 * time.Minute)
	_, ok = c.Get(ctx, "KDCA", "Airbus A321")
	assert.False(t, ok)
}

func TestAttemptStorage(t *testing.T) {
	ctx := context.Background()
	store, err := NewAttemptStorage(openTestDB(t), logger.NewNop())
	require.NoError(t, err)

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	attempts := []*briefing.Attempt{
		{Timestamp: now.Add(-1 * time.Hour), IP: "203.0.113.7", InputCode: "BWI", ResolvedCode: "KBWI", Outcome: briefing.OutcomeSuccess, DurationSeconds: 2, Model: "gpt-4o-mini", Tokens: 900},
		{Timestamp: now.Add(-2 * time.Hour), IP: "203.0.113.7", InputCode: "BWI", ResolvedCode: "KBWI", Outcome: briefing.OutcomeCacheHit, DurationSeconds: 0.2},
		{Timestamp: now.Add(-3 * time.Hour), IP: "198.51.100.9", InputCode: "KDCA", ResolvedCode: "KDCA", Outcome: briefing.OutcomeRateLimited},
		{Timestamp: now.Add(-4 * time.Hour), IP: "198.51.100.9", InputCode: "KDCA", ResolvedCode: "KDCA", Outcome: briefing.OutcomeRateLimited},
		{Timestamp: now.Add(-3 * 24 * time.Hour), IP: "192.0.2.1", InputCode: "XXXX", Outcome: briefing.OutcomeNoData, ErrorMessage: "no weather"},
		{Timestamp: now.Add(-60 * 24 * time.Hour), IP: "192.0.2.1", InputCode: "KJFK", Outcome: briefing.OutcomeError, ErrorMessage: "boom"},
	}
	for _, a := range attempts {
		require.NoError(t, store.Record(ctx, a))
		assert.NotZero(t, a.ID)
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "KJFK", recent[0].InputCode)
	assert.Equal(t, briefing.OutcomeError, recent[0].Outcome)
	assert.Equal(t, "boom", recent[0].ErrorMessage)
	assert.Equal(t, "XXXX", recent[1].InputCode)

	stats, err := store.Stats(ctx, now)
	require.NoError(t, err)
	require.Contains(t, stats, "24h")
	require.Contains(t, stats, "All")

	day := stats["24h"]
	assert.Equal(t, 4, day.Total)
	assert.Equal(t, Breakdown{Success: 1, Cache: 1, Limit: 2}, day.Breakdown)
	assert.Equal(t, "BWI (2)", day.TopAirport)
	assert.Equal(t, "198.51.100.9 (2)", day.TopIP)
	assert.Equal(t, "198.51.100.9 (2)", day.TopBlocked)
	assert.InDelta(t, 0.55, day.AvgLatency, 0.011)

	week := stats["7d"]
	assert.Equal(t, 5, week.Total)
	assert.Equal(t, 1, week.Breakdown.Fail)

	all := stats["All"]
	assert.Equal(t, 6, all.Total)
	assert.Equal(t, 2, all.Breakdown.Fail)
}

func TestAttemptStatsEmpty(t *testing.T) {
	store, err := NewAttemptStorage(openTestDB(t), logger.NewNop())
	require.NoError(t, err)

	stats, err := store.Stats(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, stats["All"].Total)
	assert.Equal(t, "-", stats["All"].TopAirport)
	assert.Equal(t, "-", stats["All"].TopBlocked)
}

func TestSettingsStorage(t *testing.T) {
	ctx := context.Background()
	store, err := NewSettingsStorage(openTestDB(t), logger.NewNop())
	require.NoError(t, err)

	_, ok, err := store.Get(ctx, "rate_limit_calls")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "rate_limit_calls", "3"))
	require.NoError(t, store.Set(ctx, "rate_limit_calls", "7"))
	require.NoError(t, store.Set(ctx, "banner_message", "hello"))

	v, ok, err := store.Get(ctx, "rate_limit_calls")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", v)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"rate_limit_calls": "7", "banner_message": "hello"}, all)
}
