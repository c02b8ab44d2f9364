// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/findata/internal/clients/financialdatasets"
	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/freshness"
	"github.com/joho/godotenv"
)

const (
	maxSaneRateLimit = 10000
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the cache database (always absolute)
	LogLevel  string
	LogPretty bool
	Port      int

	Remote RemoteConfig
	Cache  CacheConfig
	Jobs   JobsConfig

	// Warnings collects non-fatal problems found while loading, for logging
	// once the logger exists.
	Warnings []string
}

// RemoteConfig configures the Financial Datasets client.
type RemoteConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
	MaxRetries        int
}

// CacheConfig configures the resolution layers.
type CacheConfig struct {
	UseHybrid      bool // false selects direct mode (L1 -> L3)
	L1Capacity     uint64
	L2Timeout      time.Duration
	L3Timeout      time.Duration
	DBMaxOpenConns int
	TTLOverrides   map[domain.Category]freshness.Override
}

// JobsConfig configures background maintenance.
type JobsConfig struct {
	PurgeRetention time.Duration // 0 disables purging
	PurgeSchedule  string
	WarmTickers    []string
	WarmSchedule   string
	WALSchedule    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FINDATA_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		Port:      getEnvAsInt("GO_PORT", 8001),
		Remote: RemoteConfig{
			APIKey:     getEnv("FINANCIAL_DATASETS_API_KEY", ""),
			BaseURL:    getEnv("FINANCIAL_DATASETS_BASE_URL", financialdatasets.DefaultBaseURL),
			MaxRetries: getEnvAsInt("API_MAX_RETRIES", financialdatasets.DefaultMaxRetries),
		},
		Jobs: JobsConfig{
			PurgeSchedule: getEnv("PURGE_SCHEDULE", "@daily"),
			WarmTickers:   getEnvAsList("WARM_TICKERS"),
			WarmSchedule:  getEnv("WARM_SCHEDULE", "@every 15m"),
			WALSchedule:   getEnv("WAL_CHECKPOINT_SCHEDULE", "@every 10m"),
		},
	}
	cfg.Remote.RequestsPerMinute = cfg.loadRateLimit()

	if cfg.Cache, err = loadCacheConfig(); err != nil {
		return nil, err
	}
	if cfg.Jobs.PurgeRetention, err = getEnvAsDuration("PURGE_RETENTION", 0); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadRateLimit reads API_RATE_LIMIT_PER_MINUTE. Invalid values fall back
// to the default; very high values are kept but reported.
func (c *Config) loadRateLimit() int {
	def := financialdatasets.DefaultRequestsPerMinute
	raw := os.Getenv("API_RATE_LIMIT_PER_MINUTE")
	if raw == "" {
		return def
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case err != nil:
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid API_RATE_LIMIT_PER_MINUTE %q (must be an integer), using default %d", raw, def))
		return def
	case n <= 0:
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid API_RATE_LIMIT_PER_MINUTE %q (must be > 0), using default %d", raw, def))
		return def
	case n > maxSaneRateLimit:
		c.Warnings = append(c.Warnings, fmt.Sprintf("API_RATE_LIMIT_PER_MINUTE %d seems unusually high (>%d), using anyway", n, maxSaneRateLimit))
	}
	return n
}

func loadCacheConfig() (CacheConfig, error) {
	capacity := getEnvAsInt("L1_CAPACITY", 10000)
	if capacity < 0 {
		return CacheConfig{}, fmt.Errorf("L1_CAPACITY must not be negative, got %d", capacity)
	}

	cc := CacheConfig{
		UseHybrid:      getEnvAsBool("USE_HYBRID_CACHE", true),
		L1Capacity:     uint64(capacity),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		TTLOverrides:   make(map[domain.Category]freshness.Override),
	}

	var err error
	if cc.L2Timeout, err = getEnvAsDuration("L2_TIMEOUT", 2*time.Second); err != nil {
		return cc, err
	}
	if cc.L3Timeout, err = getEnvAsDuration("L3_TIMEOUT", 30*time.Second); err != nil {
		return cc, err
	}

	for _, c := range domain.AllCategories {
		var o freshness.Override
		if o.L1, err = getEnvAsOptionalDuration("L1_TTL_" + c.EnvName()); err != nil {
			return cc, err
		}
		if o.L2, err = getEnvAsOptionalDuration("L2_TTL_" + c.EnvName()); err != nil {
			return cc, err
		}
		if o.L1 != nil || o.L2 != nil {
			cc.TTLOverrides[c] = o
		}
	}

	return cc, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.Cache.L2Timeout < 0 || c.Cache.L3Timeout < 0 {
		return fmt.Errorf("layer timeouts must not be negative")
	}
	if c.Cache.DBMaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.Cache.DBMaxOpenConns)
	}
	if c.Jobs.PurgeRetention < 0 {
		return fmt.Errorf("PURGE_RETENTION must not be negative, got %s", c.Jobs.PurgeRetention)
	}
	// Rejects negative and non-positive TTLs the same way startup would.
	if _, err := freshness.NewPolicy(c.Cache.TTLOverrides); err != nil {
		return fmt.Errorf("invalid TTL configuration: %w", err)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	d, err := getEnvAsOptionalDuration(key)
	if err != nil || d == nil {
		return defaultValue, err
	}
	return *d, nil
}

// getEnvAsOptionalDuration accepts Go durations plus a "d" suffix for days.
func getEnvAsOptionalDuration(key string) (*time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		d := time.Duration(n) * 24 * time.Hour
		return &d, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return &d, nil
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
