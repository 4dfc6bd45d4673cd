package ratelimit

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/yegors/flightbrief/pkg/logger"
)

const (
	DefaultMaxCalls = 5
	DefaultPeriod   = 300 * time.Second

	keyPrefix = "rate_limit:"
)

// DefaultExemptNetworks are never counted: loopback and private ranges
var DefaultExemptNetworks = []string{
	"127.0.0.0/8",
	"::1/128",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fc00::/7",
}

// Limits is the admission policy. MaxCalls <= 0 disables limiting.
type Limits struct {
	MaxCalls int
	Period   time.Duration
}

// LimitSource supplies the current limits. It is consulted on every admission
// so runtime changes apply immediately.
type LimitSource interface {
	Limits(ctx context.Context) Limits
}

// StaticLimits is a fixed LimitSource
type StaticLimits Limits

func (s StaticLimits) Limits(ctx context.Context) Limits {
	return Limits(s)
}

// Counter increments a per-key counter. The first increment of a window arms
// the key's expiry; later increments leave it untouched.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Decision is the result of an admission check
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Exempt   bool   `json:"exempt,omitempty"`
	Identity string `json:"identity"`
	Count    int64  `json:"count"`
	Limit    int    `json:"limit"`
}

// Guard admits or rejects requests per client identity
type Guard struct {
	counter Counter
	limits  LimitSource
	exempt  []netip.Prefix
	logger  *logger.Logger
}

// NewGuard creates a guard. A nil exemptNetworks uses DefaultExemptNetworks; an
// empty non-nil slice exempts nobody.
func NewGuard(counter Counter, limits LimitSource, exemptNetworks []string, logger *logger.Logger) (*Guard, error) {
	if counter == nil {
		return nil, fmt.Errorf("counter is required")
	}
	if limits == nil {
		limits = StaticLimits{MaxCalls: DefaultMaxCalls, Period: DefaultPeriod}
	}
	if exemptNetworks == nil {
		exemptNetworks = DefaultExemptNetworks
	}

	prefixes := make([]netip.Prefix, 0, len(exemptNetworks))
	for _, n := range exemptNetworks {
		p, err := netip.ParsePrefix(strings.TrimSpace(n))
		if err != nil {
			return nil, fmt.Errorf("invalid exempt network %q: %w", n, err)
		}
		prefixes = append(prefixes, p.Masked())
	}

	return &Guard{
		counter: counter,
		limits:  limits,
		exempt:  prefixes,
		logger:  logger.Named("ratelimit"),
	}, nil
}

// Admit counts one request for identity. Exempt identities and disabled limits
// always pass without counting. Counter failures are logged and the request is
// allowed.
func (g *Guard) Admit(ctx context.Context, identity string) Decision {
	d := Decision{Allowed: true, Identity: identity}

	if g.IsExempt(identity) {
		d.Exempt = true
		return d
	}

	limits := g.limits.Limits(ctx)
	d.Limit = limits.MaxCalls
	if limits.MaxCalls <= 0 {
		return d
	}
	period := limits.Period
	if period <= 0 {
		period = DefaultPeriod
	}

	count, err := g.counter.Increment(ctx, KeyFor(identity), period)
	if err != nil {
		g.logger.Warn("Rate counter unavailable, allowing request",
			logger.String("identity", identity),
			logger.Error(err))
		return d
	}

	d.Count = count
	if count > int64(limits.MaxCalls) {
		d.Allowed = false
		g.logger.Info("Rate limit exceeded",
			logger.String("identity", identity),
			logger.Int64("count", count),
			logger.Int("limit", limits.MaxCalls),
			logger.Duration("period", period))
	}
	return d
}

// IsExempt reports whether identity is an address inside an exempt network
func (g *Guard) IsExempt(identity string) bool {
	addr, err := netip.ParseAddr(identity)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range g.exempt {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// KeyFor returns the counter key for an identity
func KeyFor(identity string) string {
	return keyPrefix + identity
}

// ClientIdentity derives the rate identity of a request: the first
// X-Forwarded-For entry, else the transport peer host. IPv4-mapped IPv6
// addresses are reduced to IPv4.
func ClientIdentity(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return normalizeHost(first)
		}
	}

	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap().String()
	}
	return normalizeHost(remoteAddr)
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if ap, err := netip.ParseAddrPort(host); err == nil {
		return ap.Addr().Unmap().String()
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}
	return host
}
