// Package cli provides the command-line interface for the collector.
package cli

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"coinmetrics-collector/internal/coinmetrics"
	"coinmetrics-collector/internal/config"
	"coinmetrics-collector/internal/logging"
	"coinmetrics-collector/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-06-01"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Client   *coinmetrics.Client
	Manifest store.Manifest
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize API client if a key is available; commands that need it
	// report the missing key themselves.
	if cfg.HasAPIKey() {
		client, err := coinmetrics.NewClient(coinmetrics.ClientConfig{
			BaseURL:    cfg.API.BaseURL,
			APIKey:     cfg.Credentials.CoinMetrics.APIKey,
			Timeout:    time.Duration(cfg.API.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.API.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize API client")
		} else {
			app.Client = client
			logger.Debug().Msg("CoinMetrics client initialized")
		}
	}

	// Initialize SQLite export manifest
	manifest, err := store.NewSQLiteManifest(cfg.Output.ManifestDB)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize manifest, resume support unavailable")
	} else {
		app.Manifest = manifest
		logger.Debug().Msg("Export manifest initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "cmcollect",
		Short: "Historical Deribit BTC options data collector",
		Long: `cmcollect downloads historical Bitcoin options market data (Greeks,
implied volatility, contract prices, open interest) from the CoinMetrics
API, organized by option expiration date and written to per-market CSV
files.

Set the CM_API_KEY environment variable or fill in credentials.toml
before collecting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/cmcollect)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newCollectCmd(app))
	rootCmd.AddCommand(newCatalogCmd(app))
	rootCmd.AddCommand(newSummaryCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("cmcollect v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Collection Configuration")
	output.Printf("  Exchange:          %s\n", cfg.Collection.Exchange)
	output.Printf("  Base Asset:        %s\n", cfg.Collection.Base)
	output.Printf("  Days Before Expiry: %d\n", cfg.Collection.DaysBeforeExpiry)
	output.Printf("  Granularity:       %s\n", cfg.Collection.Granularity)
	output.Printf("  Page Size:         %d\n", cfg.Collection.PageSize)
	output.Printf("  Max Concurrent:    %d\n", cfg.Collection.MaxConcurrent)
	output.Println()

	output.Bold("Output Configuration")
	output.Printf("  Data Dir:          %s\n", cfg.Output.Dir)
	output.Printf("  Analysis Dir:      %s\n", cfg.Output.AnalysisDir)
	output.Printf("  Manifest DB:       %s\n", cfg.Output.ManifestDB)
	output.Println()

	output.Bold("API Configuration")
	output.Printf("  Base URL:          %s\n", cfg.API.BaseURL)
	output.Printf("  Timeout:           %ds\n", cfg.API.TimeoutSeconds)
	output.Printf("  Max Retries:       %d\n", cfg.API.MaxRetries)
	output.Printf("  API Key Set:       %v\n", cfg.HasAPIKey())

	return nil
}
