package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 30, cfg.Crawl.Lookback)
	assert.Equal(t, 2, cfg.Crawl.Offset)
	assert.Equal(t, "high", cfg.Crawl.Kind)
	assert.Equal(t, 200, cfg.Enrich.Limit)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CAUSELIST_CRAWL_LOOKBACK", "7")
	t.Setenv("CAUSELIST_STORE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Crawl.Lookback)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err, "postgres driver with no database_url")
	assert.Contains(t, err.Error(), "store.database_url")

	cfg.Store.Driver = "sqlite"
	require.NoError(t, cfg.Validate())

	cfg.Crawl.Lookback = 0
	assert.Error(t, cfg.Validate())
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "shout", Format: "json"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
