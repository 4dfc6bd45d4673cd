package briefcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yegors/flightbrief/internal/clock"
	"github.com/yegors/flightbrief/pkg/logger"
)

// Entry is a stored briefing
type Entry struct {
	Key       Key           `msgpack:"key"`
	Payload   []byte        `msgpack:"payload"`
	CreatedAt time.Time     `msgpack:"created_at"`
	TTL       time.Duration `msgpack:"ttl"`
}

// Expired reports whether the entry is past its TTL at now
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Store persists entries. Load returns nil, nil when the key is absent. Save
// overwrites any existing entry for the key.
type Store interface {
	Load(ctx context.Context, key Key) (*Entry, error)
	Save(ctx context.Context, entry *Entry) error
}

// Cache stores briefings of type T keyed by airport and aircraft category.
// Stale entries are ignored on read and overwritten on the next write.
type Cache[T any] struct {
	store  Store
	clock  clock.Clock
	logger *logger.Logger
}

// New creates a cache over store
func New[T any](store Store, clk clock.Clock, logger *logger.Logger) *Cache[T] {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Cache[T]{
		store:  store,
		clock:  clk,
		logger: logger.Named("briefcache"),
	}
}

// Get returns the cached briefing when one exists and is within its TTL. Store
// and decode errors are logged and reported as a miss.
func (c *Cache[T]) Get(ctx context.Context, icao, description string) (T, bool) {
	var zero T
	key := KeyFor(icao, description)

	entry, err := c.store.Load(ctx, key)
	if err != nil {
		c.logger.Warn("Cache read failed",
			logger.String("key", key.String()),
			logger.Error(err))
		return zero, false
	}
	if entry == nil {
		return zero, false
	}

	now := c.clock.Now()
	if entry.Expired(now) {
		c.logger.Debug("Cache entry expired",
			logger.String("key", key.String()),
			logger.Duration("age", now.Sub(entry.CreatedAt)),
			logger.Duration("ttl", entry.TTL))
		return zero, false
	}

	var payload T
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		c.logger.Warn("Cache entry could not be decoded",
			logger.String("key", key.String()),
			logger.Error(err))
		return zero, false
	}
	return payload, true
}

// Put stores a briefing stamped with the current time
func (c *Cache[T]) Put(ctx context.Context, icao, description string, payload T, ttl time.Duration) error {
	key := KeyFor(icao, description)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	entry := &Entry{
		Key:       key,
		Payload:   data,
		CreatedAt: c.clock.Now().UTC(),
		TTL:       ttl,
	}
	if err := c.store.Save(ctx, entry); err != nil {
		c.logger.Warn("Cache write failed",
			logger.String("key", key.String()),
			logger.Error(err))
		return fmt.Errorf("failed to save cache entry %s: %w", key, err)
	}

	c.logger.Debug("Briefing cached",
		logger.String("key", key.String()),
		logger.Duration("ttl", ttl))
	return nil
}
