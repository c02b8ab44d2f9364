package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/findata/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FINDATA_DATA_DIR", tmpDir)

	cfg, err := Load()
	require.NoError(t, err)

	absPath, err := filepath.Abs(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, absPath, cfg.DataDir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Cache.UseHybrid)
	assert.Equal(t, uint64(10000), cfg.Cache.L1Capacity)
	assert.Equal(t, 2*time.Second, cfg.Cache.L2Timeout)
	assert.Equal(t, 30*time.Second, cfg.Cache.L3Timeout)
	assert.Equal(t, 10, cfg.Cache.DBMaxOpenConns)
	assert.Equal(t, 90, cfg.Remote.RequestsPerMinute)
	assert.Equal(t, "https://api.financialdatasets.ai", cfg.Remote.BaseURL)
	assert.Zero(t, cfg.Jobs.PurgeRetention)
	assert.Empty(t, cfg.Jobs.WarmTickers)
	assert.Empty(t, cfg.Cache.TTLOverrides)
	assert.Empty(t, cfg.Warnings)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FINDATA_DATA_DIR", t.TempDir())
	t.Setenv("USE_HYBRID_CACHE", "false")
	t.Setenv("L2_TIMEOUT", "500ms")
	t.Setenv("L1_TTL_PRICE_DATA", "5m")
	t.Setenv("L2_TTL_COMPANY_NEWS", "2d")
	t.Setenv("PURGE_RETENTION", "90d")
	t.Setenv("WARM_TICKERS", "aapl, msft,,nvda")
	t.Setenv("FINANCIAL_DATASETS_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Cache.UseHybrid)
	assert.Equal(t, 500*time.Millisecond, cfg.Cache.L2Timeout)
	assert.Equal(t, 90*24*time.Hour, cfg.Jobs.PurgeRetention)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, cfg.Jobs.WarmTickers)
	assert.Equal(t, "secret", cfg.Remote.APIKey)

	prices := cfg.Cache.TTLOverrides[domain.CategoryPrices]
	require.NotNil(t, prices.L1)
	assert.Equal(t, 5*time.Minute, *prices.L1)
	assert.Nil(t, prices.L2)

	news := cfg.Cache.TTLOverrides[domain.CategoryCompanyNews]
	require.NotNil(t, news.L2)
	assert.Equal(t, 48*time.Hour, *news.L2)
}

func TestLoad_RateLimit(t *testing.T) {
	tests := []struct {
		value    string
		expected int
		warns    bool
	}{
		{"120", 120, false},
		{"0", 90, true},
		{"-5", 90, true},
		{"lots", 90, true},
		{"20000", 20000, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("FINDATA_DATA_DIR", t.TempDir())
			t.Setenv("API_RATE_LIMIT_PER_MINUTE", tt.value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Remote.RequestsPerMinute)
			assert.Equal(t, tt.warns, len(cfg.Warnings) > 0)
		})
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"L3_TIMEOUT":        "soon",
		"L2_TTL_PRICE_DATA": "0",
		"L1_TTL_LINE_ITEMS": "-1m",
		"DB_MAX_OPEN_CONNS": "0",
		"PURGE_RETENTION":   "-1h",
		"L2_TIMEOUT":        "-1s",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("FINDATA_DATA_DIR", t.TempDir())
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
