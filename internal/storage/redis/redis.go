package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yegors/flightbrief/pkg/logger"
)

const (
	defaultPoolSize    = 20
	defaultMaxRetries  = 3
	defaultDialTimeout = 5 * time.Second
)

// Config describes how to reach Redis
type Config struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	DialTimeout  int      `toml:"dial_timeout_seconds"`
	Cluster      bool     `toml:"cluster"`
	ClusterNodes []string `toml:"cluster_nodes"`
}

// Client is a shared Redis connection used by the rate counter and cache store
type Client struct {
	client goredis.UniversalClient
	logger *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg Config, logger *logger.Logger) (*Client, error) {
	conf, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		client: newUniversalClient(conf),
		logger: logger.Named("redis"),
	}

	if err := c.pingWithRetry(ctx, conf.MaxRetries); err != nil {
		_ = c.client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	c.logger.Info("Connected to Redis",
		logger.Bool("cluster", conf.Cluster),
		logger.String("addr", conf.Host+":"+strconv.Itoa(conf.Port)))
	return c, nil
}

// Close releases Redis resources. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.client.Close()
	})
	return c.closeErr
}

func (c *Client) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		err := c.client.Ping(ctx).Err()
		if err == nil {
			return nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("ping failed with unknown error")
	}
	return lastErr
}

func normalizeConfig(cfg Config) (Config, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = int(defaultDialTimeout / time.Second)
	}

	if cfg.Cluster {
		if len(cfg.ClusterNodes) == 0 {
			return cfg, fmt.Errorf("cluster_nodes is required when cluster=true")
		}
	} else {
		if cfg.Host == "" {
			return cfg, fmt.Errorf("host is required when cluster=false")
		}
		if cfg.Port <= 0 {
			return cfg, fmt.Errorf("port must be positive when cluster=false, got %d", cfg.Port)
		}
	}

	return cfg, nil
}

func newUniversalClient(cfg Config) goredis.UniversalClient {
	dialTimeout := time.Duration(cfg.DialTimeout) * time.Second
	if cfg.Cluster {
		return goredis.NewClusterClient(&goredis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: dialTimeout,
		})
	}

	return goredis.NewClient(&goredis.Options{
		Addr:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: dialTimeout,
	})
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse int64 from %q: %w", x, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}
