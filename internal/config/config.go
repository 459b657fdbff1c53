// Package config provides configuration management for the collector.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Collection  CollectionConfig `mapstructure:"collection"`
	Output      OutputConfig     `mapstructure:"output"`
	API         APIConfig        `mapstructure:"api"`
	Credentials Credentials      `mapstructure:"-"` // Loaded separately
}

// CollectionConfig holds collection-related configuration.
type CollectionConfig struct {
	Exchange         string `mapstructure:"exchange"`           // deribit
	Base             string `mapstructure:"base"`               // btc
	DaysBeforeExpiry int    `mapstructure:"days_before_expiry"` // collection window length
	Granularity      string `mapstructure:"granularity"`        // 1d, 1h
	PageSize         int    `mapstructure:"page_size"`
	MaxConcurrent    int    `mapstructure:"max_concurrent"` // expiry groups in flight
	BatchPauseSec    int    `mapstructure:"batch_pause_sec"`
}

// OutputConfig holds output-related configuration.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`          // base directory for CSV files
	AnalysisDir string `mapstructure:"analysis_dir"` // catalog/summary reports
	ManifestDB  string `mapstructure:"manifest_db"`  // SQLite export manifest
}

// APIConfig holds vendor API configuration.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// Credentials holds API credentials.
type Credentials struct {
	CoinMetrics CoinMetricsCredentials `mapstructure:"coinmetrics"`
}

// CoinMetricsCredentials holds the CoinMetrics API key.
type CoinMetricsCredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cmcollect"
	}
	return filepath.Join(home, ".config", "cmcollect")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, write a template and continue with defaults.
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("collection.exchange", "deribit")
	v.SetDefault("collection.base", "btc")
	v.SetDefault("collection.days_before_expiry", 22)
	v.SetDefault("collection.granularity", "1d")
	v.SetDefault("collection.page_size", 10000)
	v.SetDefault("collection.max_concurrent", 5)
	v.SetDefault("collection.batch_pause_sec", 2)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.analysis_dir", "analysis")
	v.SetDefault("output.manifest_db", filepath.Join(DefaultConfigDir(), "manifest.db"))
	v.SetDefault("api.base_url", "https://api.coinmetrics.io/v4")
	v.SetDefault("api.timeout_seconds", 60)
	v.SetDefault("api.max_retries", 3)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CM_API_KEY"); v != "" {
		cfg.Credentials.CoinMetrics.APIKey = v
	}
	if v := os.Getenv("CM_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("CM_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Collection.DaysBeforeExpiry <= 0 {
		return fmt.Errorf("days_before_expiry must be positive")
	}
	if c.Collection.Granularity != "1d" && c.Collection.Granularity != "1h" {
		return fmt.Errorf("invalid granularity: %s (must be '1d' or '1h')", c.Collection.Granularity)
	}
	if c.Collection.PageSize <= 0 || c.Collection.PageSize > 10000 {
		return fmt.Errorf("page_size must be between 1 and 10000")
	}
	if c.Collection.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// HasAPIKey reports whether a CoinMetrics API key is configured.
func (c *Config) HasAPIKey() bool {
	return c.Credentials.CoinMetrics.APIKey != ""
}
