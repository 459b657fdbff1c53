package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# CoinMetrics Options Collector Configuration

[collection]
# Exchange to pull option markets from
exchange = "deribit"
# Base asset filter
base = "btc"
# Days before expiry to start collecting data.
# 22 days captures roughly 90% of the observed trading activity.
days_before_expiry = 22
# Data granularity: "1d" or "1h"
granularity = "1d"
# API page size per timeseries request
page_size = 10000
# Maximum expiry groups fetched in parallel
max_concurrent = 5
# Pause between batches, in seconds
batch_pause_sec = 2

[output]
# Base directory for per-market CSV files
dir = "."
# Directory for catalog analysis and summary reports
analysis_dir = "analysis"

[api]
base_url = "https://api.coinmetrics.io/v4"
timeout_seconds = 60
max_retries = 3
`

const credentialsTemplate = `# CoinMetrics Options Collector Credentials
# The CM_API_KEY environment variable overrides this file.

[coinmetrics]
api_key = ""
`

func createTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config.toml", configTemplate)
}

func createTemplateCredentials(configDir string) error {
	return writeTemplate(configDir, "credentials.toml", credentialsTemplate)
}

func writeTemplate(configDir, name, content string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
