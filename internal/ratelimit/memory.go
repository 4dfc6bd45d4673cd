package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yegors/flightbrief/internal/clock"
)

const defaultCleanupInterval = time.Minute

type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter is an in-process Counter. Expired windows are reset on access
// and removed by a background sweep.
type MemoryCounter struct {
	mu      sync.Mutex
	clock   clock.Clock
	windows map[string]window

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewMemoryCounter creates a counter. A cleanupInterval <= 0 uses one minute.
func NewMemoryCounter(clk clock.Clock, cleanupInterval time.Duration) *MemoryCounter {
	if clk == nil {
		clk = clock.Real{}
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}

	c := &MemoryCounter{
		clock:   clk,
		windows: make(map[string]window),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go c.cleanupLoop(cleanupInterval)
	return c
}

// Increment counts one hit for key in one critical section
func (c *MemoryCounter) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	if key == "" {
		return 0, fmt.Errorf("key is required")
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("window must be positive, got %s", ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = window{expiresAt: now.Add(ttl)}
	}
	w.count++
	c.windows[key] = w
	return w.count, nil
}

// Len returns the number of tracked keys, including expired ones not yet swept
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

func (c *MemoryCounter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		close(c.doneCh)
	}()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCounter) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for key, w := range c.windows {
		if !now.Before(w.expiresAt) {
			delete(c.windows, key)
		}
	}
}

// Close stops background cleanup. It is idempotent.
func (c *MemoryCounter) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
	})
	return nil
}
