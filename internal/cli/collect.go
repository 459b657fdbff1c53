package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"coinmetrics-collector/internal/collector"
	"coinmetrics-collector/internal/models"
)

const dateFormat = "2006-01-02"

func newCollectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Download options market data grouped by expiry date",
		Long: `Download historical Deribit BTC options data from CoinMetrics.

Markets are grouped by expiration date; for each expiry the data window
starts a configurable number of days before expiry. One CSV file is
written per market under a directory named after the data type.

With no type flag, all four data types are collected.`,
		Example: `  cmcollect collect --start-date 2024-12-01 --end-date 2024-12-31
  cmcollect collect --greeks --days-before-expiry 30
  cmcollect collect prices --start-date 2024-11-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := typesFromFlags(cmd)
			if err != nil {
				return err
			}
			return runCollect(cmd, app, types)
		},
	}

	addCollectFlags(cmd)
	cmd.Flags().Bool("greeks", false, "collect Greeks data only")
	cmd.Flags().Bool("iv", false, "collect implied volatility data only")
	cmd.Flags().Bool("prices", false, "collect contract price data only")
	cmd.Flags().Bool("oi", false, "collect open interest data only")

	for _, sub := range []struct {
		use      string
		short    string
		dataType models.DataType
	}{
		{"greeks", "Collect option Greeks", models.DataTypeGreeks},
		{"iv", "Collect implied volatility", models.DataTypeImpliedVolatility},
		{"prices", "Collect contract prices", models.DataTypeContractPrices},
		{"oi", "Collect open interest", models.DataTypeOpenInterest},
	} {
		sub := sub
		sc := &cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCollect(cmd, app, []models.DataType{sub.dataType})
			},
		}
		addCollectFlags(sc)
		cmd.AddCommand(sc)
	}

	return cmd
}

func addCollectFlags(cmd *cobra.Command) {
	cmd.Flags().String("start-date", "", "expiry range start (YYYY-MM-DD, default: end date - 30d)")
	cmd.Flags().String("end-date", "", "expiry range end (YYYY-MM-DD, default: today)")
	cmd.Flags().Int("days-before-expiry", 0, "days before expiry to collect data (default: from config)")
	cmd.Flags().String("granularity", "", "data granularity: 1d or 1h (default: from config)")
	cmd.Flags().StringP("out", "o", "", "output directory (default: from config)")
	cmd.Flags().Bool("force", false, "re-download markets already in the manifest")
}

func typesFromFlags(cmd *cobra.Command) ([]models.DataType, error) {
	var types []models.DataType
	for _, sel := range []struct {
		flag     string
		dataType models.DataType
	}{
		{"greeks", models.DataTypeGreeks},
		{"iv", models.DataTypeImpliedVolatility},
		{"prices", models.DataTypeContractPrices},
		{"oi", models.DataTypeOpenInterest},
	} {
		if set, _ := cmd.Flags().GetBool(sel.flag); set {
			types = append(types, sel.dataType)
		}
	}
	return types, nil
}

func dateRangeFromFlags(cmd *cobra.Command) (start, end time.Time, err error) {
	endStr, _ := cmd.Flags().GetString("end-date")
	startStr, _ := cmd.Flags().GetString("start-date")

	if endStr != "" {
		end, err = time.Parse(dateFormat, endStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid --end-date: %w", err)
		}
	} else {
		now := time.Now().UTC()
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	if startStr != "" {
		start, err = time.Parse(dateFormat, startStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid --start-date: %w", err)
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}

	if start.After(end) {
		return start, end, fmt.Errorf("start date %s is after end date %s", start.Format(dateFormat), end.Format(dateFormat))
	}
	return start, end, nil
}

func runCollect(cmd *cobra.Command, app *App, types []models.DataType) error {
	output := NewOutput(cmd)

	if app.Client == nil {
		output.Error("CM_API_KEY not set. Export the environment variable or fill in credentials.toml.")
		return fmt.Errorf("API client not configured")
	}

	start, end, err := dateRangeFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg := app.Config.Collection
	if v, _ := cmd.Flags().GetInt("days-before-expiry"); v > 0 {
		cfg.DaysBeforeExpiry = v
	}
	granularity := cfg.Granularity
	if v, _ := cmd.Flags().GetString("granularity"); v != "" {
		granularity = v
	}
	outDir := app.Config.Output.Dir
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		outDir = v
	}
	force, _ := cmd.Flags().GetBool("force")

	if !output.IsJSON() {
		output.Bold("Deribit Options Data Collection")
		output.Printf("  Expiry range:      %s to %s\n", start.Format(dateFormat), end.Format(dateFormat))
		output.Printf("  Window per expiry: %d days before expiry\n", cfg.DaysBeforeExpiry)
		output.Printf("  Granularity:       %s\n", granularity)
		output.Println()
	}

	c := collector.New(app.Client, app.Manifest, cfg, outDir, app.Logger)
	results, err := c.Run(context.Background(), collector.Options{
		StartDate:        start,
		EndDate:          end,
		DaysBeforeExpiry: cfg.DaysBeforeExpiry,
		Granularity:      granularity,
		Types:            types,
		Force:            force,
	})
	if err != nil {
		output.Error("Collection failed: %v", err)
		return err
	}

	if output.IsJSON() {
		return output.JSON(results)
	}
	displayResults(output, results)
	return nil
}

func displayResults(output *Output, results []collector.TypeResult) {
	table := tablewriter.NewWriter(output.Writer())
	table.SetHeader([]string{"Data Type", "Expiries", "OK", "Failed", "Files", "Rows", "Skipped"})
	for _, r := range results {
		table.Append([]string{
			string(r.DataType),
			fmt.Sprintf("%d", r.ExpiryGroups),
			fmt.Sprintf("%d", r.Succeeded),
			fmt.Sprintf("%d", r.Failed),
			fmt.Sprintf("%d", r.Files),
			fmt.Sprintf("%d", r.Rows),
			fmt.Sprintf("%d", r.Skipped),
		})
	}
	table.Render()
	output.Println()

	failed := 0
	for _, r := range results {
		failed += r.Failed
	}
	if failed > 0 {
		output.Warning("%d expiry groups failed; see the log for details", failed)
	} else {
		output.Success("Data collection complete")
	}
}
