package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/flightbrief/internal/analysis"
	"github.com/yegors/flightbrief/internal/analysis/gemini"
	"github.com/yegors/flightbrief/internal/analysis/openai"
	"github.com/yegors/flightbrief/internal/api"
	"github.com/yegors/flightbrief/internal/briefcache"
	"github.com/yegors/flightbrief/internal/briefing"
	"github.com/yegors/flightbrief/internal/clock"
	"github.com/yegors/flightbrief/internal/config"
	"github.com/yegors/flightbrief/internal/gazetteer"
	"github.com/yegors/flightbrief/internal/ratelimit"
	"github.com/yegors/flightbrief/internal/settings"
	"github.com/yegors/flightbrief/internal/stations"
	"github.com/yegors/flightbrief/internal/storage/redis"
	"github.com/yegors/flightbrief/internal/storage/sqlite"
	"github.com/yegors/flightbrief/internal/weather"
	"github.com/yegors/flightbrief/internal/websocket"
	"github.com/yegors/flightbrief/pkg/logger"
)

const rateCleanupInterval = time.Minute

// app holds every long-lived component of a running server
type app struct {
	db       *sql.DB
	redis    *redis.Client
	counter  *ratelimit.MemoryCounter
	feed     *websocket.Server
	handler  *api.Handler
	briefing *briefing.Service
	logger   *logger.Logger
}

// buildApp wires the components described by cfg. The returned app must be
// closed by the caller.
func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *app, err error) {
	a := &app{logger: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	clk := clock.Real{}

	gaz, err := gazetteer.LoadFiles(cfg.Gazetteer.AirportsFile, cfg.Gazetteer.RunwaysFile, cfg.Gazetteer.DomesticPrefix)
	if err != nil {
		return nil, err
	}
	log.Info("Loaded airport database",
		logger.Int("airports", gaz.Len()),
		logger.Int("local_ids", gaz.LocalIDCount()))

	provider, defaultModel, err := newProvider(ctx, cfg.Analysis, log)
	if err != nil {
		return nil, err
	}

	a.db, err = sqlite.Open(cfg.Storage.SQLitePath, log)
	if err != nil {
		return nil, err
	}
	attempts, err := sqlite.NewAttemptStorage(a.db, log)
	if err != nil {
		return nil, err
	}
	settingsStore, err := sqlite.NewSettingsStorage(a.db, log)
	if err != nil {
		return nil, err
	}

	manager := settings.NewManager(settingsStore, settings.Defaults{
		RateLimitCalls:  cfg.RateLimit.MaxCalls,
		RateLimitPeriod: time.Duration(cfg.RateLimit.PeriodSeconds) * time.Second,
		AnalysisModel:   defaultModel,
	}, time.Duration(cfg.Storage.SettingsCacheTTLSeconds)*time.Second, log)

	if cfg.UsesRedis() {
		a.redis, err = redis.NewClient(ctx, redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeoutSeconds,
			Cluster:      cfg.Redis.Cluster,
			ClusterNodes: cfg.Redis.ClusterNodes,
		}, log)
		if err != nil {
			return nil, err
		}
	}

	cacheStore, err := a.cacheStore(cfg.Storage.CacheBackend)
	if err != nil {
		return nil, err
	}
	cache := briefcache.New[briefing.Result](cacheStore, clk, log)

	var counter ratelimit.Counter
	switch cfg.Storage.RateBackend {
	case config.BackendRedis:
		counter = redis.NewRateCounter(a.redis)
	default:
		a.counter = ratelimit.NewMemoryCounter(clk, rateCleanupInterval)
		counter = a.counter
	}
	guard, err := ratelimit.NewGuard(counter, manager, cfg.RateLimit.ExemptNetworks, log)
	if err != nil {
		return nil, err
	}

	wx := weather.NewClient(cfg.Weather, log)
	finder := stations.NewFinder(gaz, wx, cfg.Weather.FallbackRadiusNM, log)

	analyzer := analysis.New(provider, manager, defaultModel, log)

	a.feed = websocket.NewServer(log)

	a.briefing, err = briefing.NewService(briefing.Deps{
		Gazetteer:     gaz,
		Cache:         cache,
		Guard:         guard,
		Weather:       wx,
		Stations:      finder,
		Analyzer:      analyzer,
		Pause:         manager,
		Recorder:      briefing.NewRecorders(log, attempts, a.feed),
		Clock:         clk,
		FallbackLimit: cfg.Weather.FallbackLimit,
	}, log)
	if err != nil {
		return nil, err
	}

	a.handler = api.NewHandler(api.Deps{
		Briefings: a.briefing,
		Attempts:  attempts,
		Settings:  manager,
		Feed:      a.feed,
		Clock:     clk,
	}, log)

	return a, nil
}

func (a *app) cacheStore(backend string) (briefcache.Store, error) {
	switch backend {
	case config.BackendMemory:
		return briefcache.NewMemoryStore(), nil
	case config.BackendRedis:
		return redis.NewFlightCacheStore(a.redis), nil
	case config.BackendSQLite:
		return sqlite.NewFlightCacheStorage(a.db, a.logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

func newProvider(ctx context.Context, cfg config.AnalysisConfig, log *logger.Logger) (analysis.Provider, string, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, log, cfg.GeminiBaseURL, timeout)
		if err != nil {
			return nil, "", err
		}
		return client, modelOr(cfg.Model, gemini.DefaultModel), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, "", errors.New("openai API key is required")
		}
		return openai.NewClient(cfg.OpenAIAPIKey, log, cfg.OpenAIBaseURL, timeout), modelOr(cfg.Model, openai.DefaultModel), nil
	default:
		return nil, "", fmt.Errorf("unknown analysis provider %q", cfg.Provider)
	}
}

func modelOr(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

func (a *app) close() {
	if a.counter != nil {
		a.counter.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", logger.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", logger.Error(err))
		}
	}
}
