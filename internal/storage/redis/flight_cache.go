package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/yegors/flightbrief/internal/briefcache"
)

const cacheKeyPrefix = "flight_cache:"

// FlightCacheStore implements briefcache.Store with msgpack-encoded entries.
// Keys carry no expiry; freshness is decided by the cache on read.
type FlightCacheStore struct {
	client *Client
}

// NewFlightCacheStore creates a store on a shared client
func NewFlightCacheStore(client *Client) *FlightCacheStore {
	return &FlightCacheStore{client: client}
}

func (s *FlightCacheStore) Load(ctx context.Context, key briefcache.Key) (*briefcache.Entry, error) {
	data, err := s.client.client.Get(ctx, cacheKeyPrefix+key.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry briefcache.Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	return &entry, nil
}

func (s *FlightCacheStore) Save(ctx context.Context, entry *briefcache.Entry) error {
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", entry.Key, err)
	}

	if err := s.client.client.Set(ctx, cacheKeyPrefix+entry.Key.String(), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", entry.Key, err)
	}
	return nil
}
