package briefcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightbrief/internal/clock"
	"github.com/yegors/flightbrief/pkg/logger"
)

type briefing struct {
	ICAO    string   `json:"icao"`
	Summary string   `json:"summary"`
	Notes   []string `json:"notes"`
}

func TestCategoryOf(t *testing.T) {
	tests := map[string]Category{
		"Boeing 737-800":     CategoryLarge,
		"A320neo":            CategoryLarge,
		"Bombardier CRJ700":  CategoryLarge,
		"Gulfstream G650":    CategoryLarge,
		"Beech King Air 350": CategoryMedium,
		"Pilatus PC-12":      CategoryMedium,
		"Cessna Citation":    CategoryMedium,
		"TBM 940":            CategoryMedium,
		"Cessna 172":         CategorySmall,
		"":                   CategorySmall,
		"  PIPER cherokee ":  CategorySmall,
	}
	for desc, want := range tests {
		assert.Equal(t, want, CategoryOf(desc), desc)
	}
}

func TestKeyFor(t *testing.T) {
	k := KeyFor(" kbwi", "Boeing 747")
	assert.Equal(t, Key{ICAO: "KBWI", Category: CategoryLarge}, k)
	assert.Equal(t, "KBWI_LARGE", k.String())

	// Descriptions in the same category share an entry
	assert.Equal(t, KeyFor("KBWI", "Cessna 172"), KeyFor("KBWI", "Piper Archer"))
}

func TestCacheGetWithinAndAfterTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewVirtual(time.Date(2025, 6, 15, 12, 10, 0, 0, time.UTC))
	store := NewMemoryStore()
	c := New[briefing](store, clk, logger.NewNop())

	want := briefing{ICAO: "KBWI", Summary: "VFR", Notes: []string{"calm winds"}}
	require.NoError(t, c.Put(ctx, "KBWI", "Cessna 172", want, 40*time.Minute))

	got, ok := c.Get(ctx, "kbwi", "Piper Archer")
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = c.Get(ctx, "KBWI", "Boeing 737")
	assert.False(t, ok, "other category must miss")

	clk.Advance(40 * time.Minute)
	_, ok = c.Get(ctx, "KBWI", "Cessna 172")
	assert.True(t, ok, "entry at exactly its TTL is still served")

	clk.Advance(time.Second)
	_, ok = c.Get(ctx, "KBWI", "Cessna 172")
	assert.False(t, ok)

	// Stale entries are ignored, not deleted
	assert.Equal(t, 1, store.Len())

	// The next write overwrites the stale entry
	want.Summary = "MVFR"
	require.NoError(t, c.Put(ctx, "KBWI", "Cessna 172", want, time.Hour))
	got, ok = c.Get(ctx, "KBWI", "Cessna 172")
	require.True(t, ok)
	assert.Equal(t, "MVFR", got.Summary)
	assert.Equal(t, 1, store.Len())
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context, key Key) (*Entry, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Save(ctx context.Context, entry *Entry) error {
	return errors.New("disk on fire")
}

func TestCacheStoreErrors(t *testing.T) {
	ctx := context.Background()
	c := New[briefing](failingStore{}, nil, logger.NewNop())

	_, ok := c.Get(ctx, "KBWI", "Cessna 172")
	assert.False(t, ok)
	assert.Error(t, c.Put(ctx, "KBWI", "Cessna 172", briefing{}, time.Hour))
}

func TestCacheCorruptPayloadIsMiss(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewVirtual(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, &Entry{
		Key:       KeyFor("KBWI", ""),
		Payload:   []byte("{not json"),
		CreatedAt: clk.Now(),
		TTL:       time.Hour,
	}))

	c := New[briefing](store, clk, logger.NewNop())
	_, ok := c.Get(ctx, "KBWI", "")
	assert.False(t, ok)
}

func TestDecideTTL(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		metar string
		ttl   time.Duration
		ok    bool
	}{
		{
			name:  "minute 10",
			now:   time.Date(2025, 6, 15, 14, 10, 0, 0, time.UTC),
			metar: "KBWI 151354Z 27010KT",
			ttl:   2400 * time.Second,
			ok:    true,
		},
		{
			name: "minute 49 ignores report",
			now:  time.Date(2025, 6, 15, 14, 49, 30, 0, time.UTC),
			ttl:  60 * time.Second,
			ok:   true,
		},
		{
			name:  "minute 55 with current hour report",
			now:   time.Date(2025, 6, 15, 14, 55, 0, 0, time.UTC),
			metar: "METAR KBWI 151452Z 27010KT",
			ttl:   3600 * time.Second,
			ok:    true,
		},
		{
			name:  "minute 55 with stale previous hour report",
			now:   time.Date(2025, 6, 15, 14, 55, 0, 0, time.UTC),
			metar: "METAR KBWI 151354Z 27010KT",
			ok:    false,
		},
		{
			name:  "minute 50 with previous hour report",
			now:   time.Date(2025, 6, 15, 15, 50, 0, 0, time.UTC),
			metar: "METAR KBWI 151454Z 27010KT",
			ok:    false,
		},
		{
			name:  "report within freshness window",
			now:   time.Date(2025, 6, 15, 15, 55, 0, 0, time.UTC),
			metar: "METAR KBWI 151545Z 27010KT",
			ttl:   time.Hour,
			ok:    true,
		},
		{
			name:  "report from the previous month",
			now:   time.Date(2025, 7, 1, 0, 55, 0, 0, time.UTC),
			metar: "METAR KBWI 302354Z 27010KT",
			ok:    false,
		},
		{
			name:  "report stamped just after midnight",
			now:   time.Date(2025, 6, 15, 23, 55, 0, 0, time.UTC),
			metar: "METAR KBWI 160001Z 27010KT",
			ttl:   time.Hour,
			ok:    true,
		},
		{
			name:  "report already dated the first of next month",
			now:   time.Date(2025, 6, 30, 23, 55, 0, 0, time.UTC),
			metar: "METAR KBWI 010001Z 27010KT",
			ttl:   time.Hour,
			ok:    true,
		},
		{
			name:  "report from two days ago",
			now:   time.Date(2025, 6, 15, 14, 55, 0, 0, time.UTC),
			metar: "METAR KBWI 131452Z 27010KT",
			ok:    false,
		},
		{
			name:  "same hour of the previous day",
			now:   time.Date(2025, 6, 15, 14, 55, 0, 0, time.UTC),
			metar: "METAR KBWI 141452Z 27010KT",
			ok:    false,
		},
		{
			name:  "unparseable report",
			now:   time.Date(2025, 6, 15, 14, 55, 0, 0, time.UTC),
			metar: "garbage",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := DecideTTL(tt.now, tt.metar)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.ttl, ttl)
			}
		})
	}
}

func TestDecideTTLWindowBoundary(t *testing.T) {
	now := time.Date(2025, 6, 15, 15, 51, 0, 0, time.UTC)
	_, ok := DecideTTL(now, "KBWI 151536Z") // 15 minutes old, same hour
	assert.True(t, ok)

	now = time.Date(2025, 6, 16, 0, 52, 0, 0, time.UTC)
	_, ok = DecideTTL(now, "KBWI 152337Z") // 15 minutes old, previous hour
	assert.True(t, ok)

	_, ok = DecideTTL(now, "KBWI 152336Z")
	assert.False(t, ok)
}
