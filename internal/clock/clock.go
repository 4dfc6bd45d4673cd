package clock

import (
	"sync"
	"time"
)

// Clock abstracts the wall clock so cache freshness and rate windows can be
// driven by virtual time in tests.
type Clock interface {
	Now() time.Time
}

// Real delegates to the time package and always reports UTC.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Virtual is a manually advanced clock. Safe for concurrent use.
type Virtual struct {
	mu      sync.RWMutex
	current time.Time
}

// NewVirtual creates a Virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{current: start.UTC()}
}

func (c *Virtual) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Advance moves the clock forward. Panics if d is negative.
func (c *Virtual) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set moves the clock to t. Panics if t is before the current time.
func (c *Virtual) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.current) {
		panic("clock: cannot set time to the past")
	}
	c.current = t.UTC()
}
