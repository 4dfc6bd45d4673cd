package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightbrief/internal/clock"
	"github.com/yegors/flightbrief/pkg/logger"
)

func newTestGuard(t *testing.T, clk clock.Clock, limits Limits, exempt []string) *Guard {
	t.Helper()
	counter := NewMemoryCounter(clk, time.Hour)
	t.Cleanup(func() { _ = counter.Close() })

	g, err := NewGuard(counter, StaticLimits(limits), exempt, logger.NewNop())
	require.NoError(t, err)
	return g
}

func TestAdmitRejectsAfterMax(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewVirtual(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	g := newTestGuard(t, clk, Limits{MaxCalls: 3, Period: 5 * time.Minute}, nil)

	for i := 1; i <= 3; i++ {
		d := g.Admit(ctx, "203.0.113.7")
		require.True(t, d.Allowed, "call %d", i)
		assert.Equal(t, int64(i), d.Count)
	}

	d := g.Admit(ctx, "203.0.113.7")
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(4), d.Count)
	assert.Equal(t, 3, d.Limit)

	// Other identities have their own window
	assert.True(t, g.Admit(ctx, "198.51.100.1").Allowed)

	// Rejections keep counting until the window expires
	clk.Advance(4 * time.Minute)
	assert.False(t, g.Admit(ctx, "203.0.113.7").Allowed)

	clk.Advance(time.Minute)
	d = g.Admit(ctx, "203.0.113.7")
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Count)
}

func TestAdmitExemptIdentities(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, clock.Real{}, Limits{MaxCalls: 1, Period: time.Hour}, nil)

	for _, ip := range []string{"127.0.0.1", "::1", "10.1.2.3", "172.20.0.5", "192.168.1.10", "::ffff:10.0.0.1", "fd00::1"} {
		for i := 0; i < 5; i++ {
			d := g.Admit(ctx, ip)
			require.True(t, d.Allowed, ip)
			assert.True(t, d.Exempt, ip)
			assert.Zero(t, d.Count, ip)
		}
	}

	assert.True(t, g.Admit(ctx, "172.32.0.1").Allowed)
	assert.False(t, g.Admit(ctx, "172.32.0.1").Allowed)
}

func TestAdmitEmptyExemptList(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, clock.Real{}, Limits{MaxCalls: 1, Period: time.Hour}, []string{})

	assert.True(t, g.Admit(ctx, "127.0.0.1").Allowed)
	assert.False(t, g.Admit(ctx, "127.0.0.1").Allowed)
}

func TestAdmitDisabled(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, clock.Real{}, Limits{MaxCalls: 0}, []string{})

	for i := 0; i < 20; i++ {
		d := g.Admit(ctx, "203.0.113.7")
		require.True(t, d.Allowed)
		assert.Zero(t, d.Count)
	}
}

type brokenCounter struct{}

func (brokenCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestAdmitAllowsOnCounterError(t *testing.T) {
	g, err := NewGuard(brokenCounter{}, StaticLimits{MaxCalls: 1, Period: time.Minute}, []string{}, logger.NewNop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, g.Admit(context.Background(), "203.0.113.7").Allowed)
	}
}

type recordingCounter struct {
	keys    []string
	windows []time.Duration
}

func (r *recordingCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	r.keys = append(r.keys, key)
	r.windows = append(r.windows, window)
	return int64(len(r.keys)), nil
}

func TestAdmitUsesPrefixedKeyAndDefaultPeriod(t *testing.T) {
	rc := &recordingCounter{}
	g, err := NewGuard(rc, StaticLimits{MaxCalls: 10}, []string{}, logger.NewNop())
	require.NoError(t, err)

	g.Admit(context.Background(), "203.0.113.7")
	assert.Equal(t, []string{"rate_limit:203.0.113.7"}, rc.keys)
	assert.Equal(t, []time.Duration{DefaultPeriod}, rc.windows)
}

func TestNewGuardRejectsBadNetwork(t *testing.T) {
	_, err := NewGuard(NewMemoryCounter(nil, 0), nil, []string{"not-a-cidr"}, logger.NewNop())
	assert.Error(t, err)

	_, err = NewGuard(nil, nil, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestClientIdentity(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{"remote ipv4", "", "203.0.113.7:52311", "203.0.113.7"},
		{"remote ipv6", "", "[2001:db8::1]:443", "2001:db8::1"},
		{"remote mapped", "", "[::ffff:203.0.113.7]:443", "203.0.113.7"},
		{"forwarded first entry", "198.51.100.4, 10.0.0.1", "10.0.0.2:80", "198.51.100.4"},
		{"forwarded mapped", "::ffff:198.51.100.4", "10.0.0.2:80", "198.51.100.4"},
		{"forwarded with port", "198.51.100.4:1234", "10.0.0.2:80", "198.51.100.4"},
		{"blank forwarded", " , 1.2.3.4", "203.0.113.7:1", "203.0.113.7"},
		{"remote without port", "", "203.0.113.7", "203.0.113.7"},
		{"unparseable", "", "pipe", "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientIdentity(tt.forwarded, tt.remoteAddr))
		})
	}
}

func TestMemoryCounterConcurrent(t *testing.T) {
	c := NewMemoryCounter(clock.Real{}, time.Hour)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Increment(context.Background(), "k", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := c.Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(51), n)
}

func TestMemoryCounterCleanup(t *testing.T) {
	clk := clock.NewVirtual(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	c := NewMemoryCounter(clk, time.Hour)
	defer c.Close()

	_, err := c.Increment(context.Background(), "a", time.Minute)
	require.NoError(t, err)
	_, err = c.Increment(context.Background(), "b", time.Hour)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	c.cleanup()
	assert.Equal(t, 1, c.Len())

	_, err = c.Increment(context.Background(), "", time.Minute)
	assert.Error(t, err)
}
