package settings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yegors/flightbrief/internal/ratelimit"
	"github.com/yegors/flightbrief/pkg/logger"
)

// Runtime setting keys
const (
	KeyRateLimitCalls     = "rate_limit_calls"
	KeyRateLimitPeriod    = "rate_limit_period"
	KeyAnalysisModel      = "analysis_model"
	KeyGlobalPause        = "global_pause"
	KeyGlobalPauseMessage = "global_pause_message"
	KeyBannerEnabled      = "banner_enabled"
	KeyBannerMessage      = "banner_message"
)

const (
	DefaultCacheTTL    = 60 * time.Second
	defaultCacheSize   = 64
	defaultPauseNotice = "Briefings are temporarily paused. Please try again later."
)

type kind int

const (
	kindString kind = iota
	kindInt
	kindBool
)

var keyKinds = map[string]kind{
	KeyRateLimitCalls:     kindInt,
	KeyRateLimitPeriod:    kindInt,
	KeyAnalysisModel:      kindString,
	KeyGlobalPause:        kindBool,
	KeyGlobalPauseMessage: kindString,
	KeyBannerEnabled:      kindBool,
	KeyBannerMessage:      kindString,
}

// Store persists settings
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// Defaults seeds values for keys that have never been stored
type Defaults struct {
	RateLimitCalls  int
	RateLimitPeriod time.Duration
	AnalysisModel   string
}

func (d Defaults) values() map[string]string {
	return map[string]string{
		KeyRateLimitCalls:     strconv.Itoa(d.RateLimitCalls),
		KeyRateLimitPeriod:    strconv.Itoa(int(d.RateLimitPeriod / time.Second)),
		KeyAnalysisModel:      d.AnalysisModel,
		KeyGlobalPause:        "false",
		KeyGlobalPauseMessage: defaultPauseNotice,
		KeyBannerEnabled:      "false",
		KeyBannerMessage:      "",
	}
}

// Manager reads runtime settings through a short-lived LRU in front of the store
type Manager struct {
	store    Store
	cache    *expirable.LRU[string, string]
	defaults map[string]string
	logger   *logger.Logger
}

// NewManager creates a manager. A ttl <= 0 uses DefaultCacheTTL.
func NewManager(store Store, defaults Defaults, ttl time.Duration, logger *logger.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Manager{
		store:    store,
		cache:    expirable.NewLRU[string, string](defaultCacheSize, nil, ttl),
		defaults: defaults.values(),
		logger:   logger.Named("settings"),
	}
}

// Get returns the value for key, falling back to its default when the key was
// never stored or the store is unavailable.
func (m *Manager) Get(ctx context.Context, key string) string {
	if v, ok := m.cache.Get(key); ok {
		return v
	}

	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("Failed to read setting, using default",
			logger.String("key", key),
			logger.Error(err))
		return m.defaults[key]
	}
	if !ok {
		v = m.defaults[key]
	}
	m.cache.Add(key, v)
	return v
}

// Set validates and stores a value
func (m *Manager) Set(ctx context.Context, key, value string) error {
	value, err := normalize(key, value)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, key, value); err != nil {
		return err
	}
	m.cache.Add(key, value)
	return nil
}

// Update applies several values. Every value is validated before any is stored.
func (m *Manager) Update(ctx context.Context, values map[string]string) error {
	normalized := make(map[string]string, len(values))
	for k, v := range values {
		nv, err := normalize(k, v)
		if err != nil {
			return err
		}
		normalized[k] = nv
	}

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := m.store.Set(ctx, k, normalized[k]); err != nil {
			return err
		}
		m.cache.Add(k, normalized[k])
	}
	return nil
}

// All returns every known setting with defaults filled in
func (m *Manager) All(ctx context.Context) (map[string]string, error) {
	stored, err := m.store.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(m.defaults))
	for k, v := range m.defaults {
		out[k] = v
	}
	for k, v := range stored {
		if _, known := keyKinds[k]; known {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Manager) intValue(ctx context.Context, key string) int {
	v := m.Get(ctx, key)
	n, err := strconv.Atoi(v)
	if err != nil {
		n, _ = strconv.Atoi(m.defaults[key])
	}
	return n
}

func (m *Manager) boolValue(ctx context.Context, key string) bool {
	b, _ := strconv.ParseBool(m.Get(ctx, key))
	return b
}

// Limits implements ratelimit.LimitSource
func (m *Manager) Limits(ctx context.Context) ratelimit.Limits {
	return ratelimit.Limits{
		MaxCalls: m.intValue(ctx, KeyRateLimitCalls),
		Period:   time.Duration(m.intValue(ctx, KeyRateLimitPeriod)) * time.Second,
	}
}

// AnalysisModel returns the model override, or "" to use the provider default
func (m *Manager) AnalysisModel(ctx context.Context) string {
	return m.Get(ctx, KeyAnalysisModel)
}

// Paused reports whether briefings are globally paused and the notice to show
func (m *Manager) Paused(ctx context.Context) (bool, string) {
	if !m.boolValue(ctx, KeyGlobalPause) {
		return false, ""
	}
	msg := m.Get(ctx, KeyGlobalPauseMessage)
	if msg == "" {
		msg = defaultPauseNotice
	}
	return true, msg
}

// Banner returns the public banner state
func (m *Manager) Banner(ctx context.Context) (bool, string) {
	return m.boolValue(ctx, KeyBannerEnabled), m.Get(ctx, KeyBannerMessage)
}

func normalize(key, value string) (string, error) {
	k, ok := keyKinds[key]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}

	value = strings.TrimSpace(value)
	switch k {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("setting %s must be an integer: %w", key, err)
		}
		if n < 0 {
			return "", fmt.Errorf("setting %s must be 0 or greater", key)
		}
		return strconv.Itoa(n), nil
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("setting %s must be true or false: %w", key, err)
		}
		return strconv.FormatBool(b), nil
	default:
		return value, nil
	}
}
