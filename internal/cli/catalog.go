package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"coinmetrics-collector/internal/analysis"
	"coinmetrics-collector/internal/coinmetrics"
	"coinmetrics-collector/internal/models"
)

func newCatalogCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the options market catalog",
	}
	cmd.AddCommand(newCatalogAnalyzeCmd(app))
	return cmd
}

func newCatalogAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze catalog trading periods and recommend a collection window",
		Long: `Fetch the Greeks catalog and analyze when option markets start trading
relative to their expiration. The report includes trading-period length
distribution, days-before-expiration percentiles, option type and strike
distribution, and a recommended collection window.

The analyzed catalog is also written as a CSV under the analysis directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Client == nil {
				output.Error("CM_API_KEY not set. Export the environment variable or fill in credentials.toml.")
				return fmt.Errorf("API client not configured")
			}

			exchange, _ := cmd.Flags().GetString("exchange")
			base, _ := cmd.Flags().GetString("base")

			ctx := context.Background()
			entries, err := app.Client.Catalog(ctx, models.DataTypeGreeks, coinmetrics.CatalogQuery{
				Exchange: exchange,
				Base:     base,
			})
			if err != nil {
				output.Error("Failed to fetch catalog: %v", err)
				return err
			}

			stats, rows, err := analysis.AnalyzeCatalog(entries, time.Now().UTC())
			if err != nil {
				output.Error("Catalog analysis failed: %v", err)
				return err
			}

			csvPath, err := analysis.WriteCatalogCSV(app.Config.Output.AnalysisDir, rows)
			if err != nil {
				output.Warning("Failed to write catalog CSV: %v", err)
			}

			if output.IsJSON() {
				return output.JSON(stats)
			}
			displayCatalogStats(output, stats, csvPath)
			return nil
		},
	}

	cmd.Flags().String("exchange", "deribit", "exchange to analyze")
	cmd.Flags().String("base", "btc", "base asset filter")
	return cmd
}

func displayCatalogStats(output *Output, stats *analysis.CatalogStats, csvPath string) {
	output.Bold("Catalog Analysis")
	output.Printf("  Markets:        %d\n", stats.Markets)
	output.Printf("  Active markets: %d\n", stats.ActiveMarkets)
	output.Println()

	output.Bold("Distributions (days)")
	table := tablewriter.NewWriter(output.Writer())
	table.SetHeader([]string{"Metric", "Mean", "Std", "P50", "P75", "P90", "P95"})
	appendDistribution(table, "Trading period", stats.TradingDays)
	appendDistribution(table, "Days before expiration", stats.DaysBeforeExpiration)
	table.Render()
	output.Println()

	output.Bold("Option Types")
	for optType, count := range stats.OptionTypes {
		output.Printf("  %s: %d\n", optType, count)
	}
	output.Println()

	output.Bold("Strikes")
	output.Printf("  Min: %.0f  Max: %.0f  Mean: %.0f\n", stats.Strikes.Min, stats.Strikes.Max, stats.Strikes.Mean)
	output.Println()

	if n := len(stats.MonthlyTradingDays); n > 0 {
		output.Bold("Average Trading Period by Expiration Month (last 20)")
		monthly := stats.MonthlyTradingDays
		if n > 20 {
			monthly = monthly[n-20:]
		}
		mt := tablewriter.NewWriter(output.Writer())
		mt.SetHeader([]string{"Month", "Avg Days", "Markets"})
		for _, m := range monthly {
			mt.Append([]string{m.Month, fmt.Sprintf("%.1f", m.AvgDays), fmt.Sprintf("%d", m.MarketCount)})
		}
		mt.Render()
		output.Println()
	}

	output.Success("Recommendation: collect data starting %.0f days before expiration to capture ~90%% of trading activity", stats.RecommendedDays)
	if csvPath != "" {
		output.Dim("Catalog CSV written to %s", csvPath)
	}
}

func appendDistribution(table *tablewriter.Table, name string, d analysis.Distribution) {
	table.Append([]string{
		name,
		fmt.Sprintf("%.1f", d.Mean),
		fmt.Sprintf("%.1f", d.Std),
		fmt.Sprintf("%.1f", d.P50),
		fmt.Sprintf("%.1f", d.P75),
		fmt.Sprintf("%.1f", d.P90),
		fmt.Sprintf("%.1f", d.P95),
	})
}
