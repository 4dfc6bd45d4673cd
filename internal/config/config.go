package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/yegors/flightbrief/internal/weather"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server    ServerConfig    `toml:"server"`     // HTTP server settings
	Logging   LoggingConfig   `toml:"logging"`    // Application logging settings
	Storage   StorageConfig   `toml:"storage"`    // Persistence backends
	Redis     RedisConfig     `toml:"redis"`      // Redis connection, used when a backend is "redis"
	Gazetteer GazetteerConfig `toml:"gazetteer"`  // Static airport dataset
	Weather   weather.Config  `toml:"wx"`         // Upstream weather and NOTAM settings
	RateLimit RateLimitConfig `toml:"rate_limit"` // Default per-client limits
	Analysis  AnalysisConfig  `toml:"analysis"`   // Language model provider settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response; must cover a full analysis
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve the web client from; empty disables static serving
	AdminToken         string   `toml:"admin_token"`           // Bearer token for /api/admin; empty disables the admin API
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional rotated log file
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
}

// Storage backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLitePath              string `toml:"sqlite_path"`                // SQLite database file for the attempt log, settings and the sqlite cache
	CacheBackend            string `toml:"cache_backend"`              // Briefing cache: "sqlite", "redis" or "memory"
	RateBackend             string `toml:"rate_backend"`               // Rate counters: "memory" or "redis"
	SettingsCacheTTLSeconds int    `toml:"settings_cache_ttl_seconds"` // How long runtime settings are served from memory
}

// RedisConfig contains the Redis connection settings
type RedisConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	Password           string   `toml:"password"`
	DB                 int      `toml:"db"`
	PoolSize           int      `toml:"pool_size"`
	MaxRetries         int      `toml:"max_retries"`
	DialTimeoutSeconds int      `toml:"dial_timeout_seconds"`
	Cluster            bool     `toml:"cluster"`
	ClusterNodes       []string `toml:"cluster_nodes"`
}

// GazetteerConfig locates the static airport dataset
type GazetteerConfig struct {
	AirportsFile   string `toml:"airports_file"`   // airports CSV (OurAirports or airportsdata layout)
	RunwaysFile    string `toml:"runways_file"`    // Optional runways CSV (OurAirports layout)
	DomesticPrefix string `toml:"domestic_prefix"` // Prefix tried for 3-character codes, "K" by default
}

// RateLimitConfig contains the default admission policy. Runtime settings override it.
type RateLimitConfig struct {
	MaxCalls       int      `toml:"max_calls"`       // Uncached briefings allowed per window; 0 disables limiting
	PeriodSeconds  int      `toml:"period_seconds"`  // Window length
	ExemptNetworks []string `toml:"exempt_networks"` // CIDRs never counted; unset uses loopback and private ranges
}

// Analysis providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// AnalysisConfig contains language model provider settings
type AnalysisConfig struct {
	Provider       string `toml:"provider"`        // "openai" or "gemini"
	Model          string `toml:"model"`           // Default model; the analysis_model setting overrides it
	TimeoutSeconds int    `toml:"timeout_seconds"` // Per-request provider timeout
	OpenAIAPIKey   string `toml:"openai_api_key"`  // Falls back to OPENAI_API_KEY
	OpenAIBaseURL  string `toml:"openai_base_url"` // Self-hosted or proxy endpoint; default https://api.openai.com
	GeminiAPIKey   string `toml:"gemini_api_key"`  // Falls back to GEMINI_API_KEY
	GeminiBaseURL  string `toml:"gemini_base_url"` // Optional endpoint override
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8000,
			Host:               "0.0.0.0",
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSecs:    15,
			WriteTimeoutSecs:   120,
			IdleTimeoutSecs:    60,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Storage: StorageConfig{
			SQLitePath:              "data/flightbrief.db",
			CacheBackend:            BackendSQLite,
			RateBackend:             BackendMemory,
			SettingsCacheTTLSeconds: 60,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Gazetteer: GazetteerConfig{
			AirportsFile:   "data/airports.csv",
			DomesticPrefix: "K",
		},
		Weather: weather.DefaultConfig(),
		RateLimit: RateLimitConfig{
			MaxCalls:      5,
			PeriodSeconds: 300,
		},
		Analysis: AnalysisConfig{
			Provider:       ProviderOpenAI,
			TimeoutSeconds: 60,
		},
	}
}

// Load loads the configuration from the specified file path. Values missing
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	config := Default()

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnv()
	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// applyEnv fills secrets left empty in the file from the environment
func (c *Config) applyEnv() {
	if c.Analysis.OpenAIAPIKey == "" {
		c.Analysis.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Analysis.GeminiAPIKey == "" {
		c.Analysis.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Server.AdminToken == "" {
		c.Server.AdminToken = os.Getenv("FLIGHTBRIEF_ADMIN_TOKEN")
	}
	if c.Redis.Password == "" {
		c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be 0 or greater")
	}

	// Validate static files directory exists when configured
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Gazetteer.AirportsFile == "" {
		return fmt.Errorf("gazetteer airports_file cannot be empty")
	}
	c.Gazetteer.DomesticPrefix = strings.ToUpper(strings.TrimSpace(c.Gazetteer.DomesticPrefix))

	if err := weather.ValidateConfig(c.Weather); err != nil {
		return fmt.Errorf("invalid wx config: %w", err)
	}

	if err := c.validateRateLimit(); err != nil {
		return err
	}

	return c.validateAnalysis()
}

func (c *Config) validateStorage() error {
	switch c.Storage.CacheBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid cache_backend: %s (must be 'sqlite', 'redis' or 'memory')", c.Storage.CacheBackend)
	}

	switch c.Storage.RateBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("invalid rate_backend: %s (must be 'memory' or 'redis')", c.Storage.RateBackend)
	}

	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage sqlite_path cannot be empty")
	}
	if c.Storage.SettingsCacheTTLSeconds <= 0 {
		c.Storage.SettingsCacheTTLSeconds = 60
	}

	if c.UsesRedis() {
		if c.Redis.Cluster && len(c.Redis.ClusterNodes) == 0 {
			return fmt.Errorf("redis cluster_nodes is required when cluster=true")
		}
		if !c.Redis.Cluster && (c.Redis.Host == "" || c.Redis.Port <= 0) {
			return fmt.Errorf("redis host and port are required")
		}
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.MaxCalls < 0 {
		return fmt.Errorf("rate_limit max_calls must be 0 or greater: %d", c.RateLimit.MaxCalls)
	}
	if c.RateLimit.PeriodSeconds <= 0 {
		return fmt.Errorf("rate_limit period_seconds must be greater than 0: %d", c.RateLimit.PeriodSeconds)
	}
	for _, n := range c.RateLimit.ExemptNetworks {
		if _, err := netip.ParsePrefix(strings.TrimSpace(n)); err != nil {
			return fmt.Errorf("invalid rate_limit exempt network %q: %w", n, err)
		}
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	c.Analysis.Provider = strings.ToLower(strings.TrimSpace(c.Analysis.Provider))
	switch c.Analysis.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("invalid analysis provider: %s (must be 'openai' or 'gemini')", c.Analysis.Provider)
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		return fmt.Errorf("analysis timeout_seconds must be greater than 0: %d", c.Analysis.TimeoutSeconds)
	}
	return nil
}

// UsesRedis reports whether any backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Storage.CacheBackend == BackendRedis || c.Storage.RateBackend == BackendRedis
}

// AnalysisAPIKey returns the key of the selected provider, "" when none is set
func (c *Config) AnalysisAPIKey() string {
	if c.Analysis.Provider == ProviderGemini {
		return c.Analysis.GeminiAPIKey
	}
	return c.Analysis.OpenAIAPIKey
}
