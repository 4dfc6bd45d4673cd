package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Arms the expiry only on the first hit so a window never slides
var incrementScript = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RateCounter implements ratelimit.Counter on Redis
type RateCounter struct {
	client *Client
}

// NewRateCounter creates a counter on a shared client
func NewRateCounter(client *Client) *RateCounter {
	return &RateCounter{client: client}
}

// Increment atomically counts one hit for key
func (r *RateCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("key is required")
	}
	windowMS := window.Milliseconds()
	if windowMS <= 0 {
		return 0, fmt.Errorf("window must be at least 1ms, got %s", window)
	}

	res, err := incrementScript.Run(ctx, r.client.client, []string{key}, windowMS).Result()
	if err != nil {
		return 0, fmt.Errorf("running redis increment script: %w", err)
	}

	count, err := asInt64(res)
	if err != nil {
		return 0, fmt.Errorf("parsing increment result: %w", err)
	}
	return count, nil
}
