package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesTemplatesAndDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "deribit", cfg.Collection.Exchange)
	assert.Equal(t, "btc", cfg.Collection.Base)
	assert.Equal(t, 22, cfg.Collection.DaysBeforeExpiry)
	assert.Equal(t, "1d", cfg.Collection.Granularity)
	assert.Equal(t, 10000, cfg.Collection.PageSize)
	assert.Equal(t, 5, cfg.Collection.MaxConcurrent)
	assert.Equal(t, "https://api.coinmetrics.io/v4", cfg.API.BaseURL)
	assert.False(t, cfg.HasAPIKey())

	// Missing files are replaced with commented templates.
	for _, name := range []string{"config.toml", "credentials.toml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	// The templates parse cleanly on the next load.
	_, err = Load(dir)
	require.NoError(t, err)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()

	configToml := `
[collection]
exchange = "deribit"
base = "eth"
days_before_expiry = 30
granularity = "1h"

[output]
dir = "/data/options"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(configToml), 0644))

	credsToml := `
[coinmetrics]
api_key = "secret-key"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.toml"), []byte(credsToml), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "eth", cfg.Collection.Base)
	assert.Equal(t, 30, cfg.Collection.DaysBeforeExpiry)
	assert.Equal(t, "1h", cfg.Collection.Granularity)
	assert.Equal(t, "/data/options", cfg.Output.Dir)
	// Unset keys fall back to defaults.
	assert.Equal(t, 10000, cfg.Collection.PageSize)

	assert.True(t, cfg.HasAPIKey())
	assert.Equal(t, "secret-key", cfg.Credentials.CoinMetrics.APIKey)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CM_API_KEY", "env-key")
	t.Setenv("CM_API_BASE_URL", "http://localhost:8080/v4")
	t.Setenv("CM_OUTPUT_DIR", "/tmp/out")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Credentials.CoinMetrics.APIKey)
	assert.Equal(t, "http://localhost:8080/v4", cfg.API.BaseURL)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Collection: CollectionConfig{
				Exchange:         "deribit",
				Base:             "btc",
				DaysBeforeExpiry: 22,
				Granularity:      "1d",
				PageSize:         10000,
				MaxConcurrent:    5,
			},
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.Collection.DaysBeforeExpiry = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Collection.Granularity = "5m"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Collection.PageSize = 20000
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Collection.MaxConcurrent = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.API.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configToml := `
[collection]
granularity = "5m"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(configToml), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}
