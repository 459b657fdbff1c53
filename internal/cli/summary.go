package cli

import (
	"fmt"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"coinmetrics-collector/internal/analysis"
	"coinmetrics-collector/internal/models"
)

func newSummaryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary [files...]",
		Short: "Summarize and validate downloaded Greeks data",
		Long: `Load per-market Greeks CSV files, print per-option statistics and
put-call consistency checks, and write a validity assessment report.

Without arguments, every CSV under <output dir>/market-greeks is loaded.`,
		Example: `  cmcollect summary
  cmcollect summary market-greeks/deribit-BTC-13DEC24-100000-C-option.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			files := args
			if len(files) == 0 {
				pattern := filepath.Join(app.Config.Output.Dir, models.DataTypeGreeks.Dir(), "*.csv")
				matches, err := filepath.Glob(pattern)
				if err != nil {
					return err
				}
				files = matches
			}
			if len(files) == 0 {
				output.Error("No Greeks CSV files found. Run 'cmcollect collect greeks' first.")
				return fmt.Errorf("no input files")
			}

			var series []*analysis.OptionSeries
			for _, f := range files {
				s, err := analysis.LoadGreeksCSV(f)
				if err != nil {
					output.Warning("Skipping %s: %v", f, err)
					continue
				}
				app.Logger.Debug().Str("file", f).Int("rows", len(s.Rows)).Msg("Loaded series")
				series = append(series, s)
			}
			if len(series) == 0 {
				return fmt.Errorf("no readable input files")
			}

			assessment := analysis.Assess(series)

			reportPath, err := analysis.WriteAssessment(app.Config.Output.AnalysisDir, assessment)
			if err != nil {
				output.Warning("Failed to write assessment report: %v", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"options":     summariesFor(series),
					"assessment":  assessment,
					"report_path": reportPath,
				})
			}

			displaySummary(output, series, assessment, reportPath)
			return nil
		},
	}
	return cmd
}

type optionSummary struct {
	Option string                         `json:"option"`
	Rows   int                            `json:"rows"`
	Greeks map[string]analysis.GreekStats `json:"greeks"`
	Daily  []analysis.DailyGreeks         `json:"daily"`
}

func summariesFor(series []*analysis.OptionSeries) []optionSummary {
	out := make([]optionSummary, 0, len(series))
	for _, s := range series {
		out = append(out, optionSummary{
			Option: s.Label(),
			Rows:   len(s.Rows),
			Greeks: s.Stats(),
			Daily:  s.DailyAggregate(),
		})
	}
	return out
}

func displaySummary(output *Output, series []*analysis.OptionSeries, a analysis.Assessment, reportPath string) {
	for _, s := range series {
		output.Bold("%s (%s)", s.Label(), s.Market)
		first := s.Rows[0].Time
		last := s.Rows[len(s.Rows)-1].Time
		output.Printf("  Period: %s to %s (%d rows)\n", first.Format(dateFormat), last.Format(dateFormat), len(s.Rows))

		table := tablewriter.NewWriter(output.Writer())
		table.SetHeader([]string{"Greek", "Min", "Max", "Mean", "Std"})
		st := s.Stats()
		for _, name := range analysis.GreekNames {
			g := st[name]
			table.Append([]string{
				name,
				fmt.Sprintf("%.4f", g.Min),
				fmt.Sprintf("%.4f", g.Max),
				fmt.Sprintf("%.4f", g.Mean),
				fmt.Sprintf("%.4f", g.Std),
			})
		}
		table.Render()

		daily := s.DailyAggregate()
		if len(daily) > 7 {
			daily = daily[len(daily)-7:]
		}
		output.Printf("  Daily means, final %d days:\n", len(daily))
		dt := tablewriter.NewWriter(output.Writer())
		dt.SetHeader([]string{"Date", "Delta", "Gamma", "Theta"})
		for _, d := range daily {
			dt.Append([]string{
				d.Date.Format(dateFormat),
				fmt.Sprintf("%.4f", d.Delta),
				fmt.Sprintf("%.6f", d.Gamma),
				fmt.Sprintf("%.2f", d.Theta),
			})
		}
		dt.Render()
		output.Println()
	}

	if len(a.PairChecks) > 0 {
		output.Bold("Put-Call Consistency")
		table := tablewriter.NewWriter(output.Writer())
		table.SetHeader([]string{"Strike", "Expiry", "Delta Sum", "Gamma Ratio", "Vega Ratio"})
		for _, c := range a.PairChecks {
			table.Append([]string{
				fmt.Sprintf("%.0f", c.Strike),
				c.Expiry.Format(dateFormat),
				fmt.Sprintf("%.4f", c.DeltaSum),
				fmt.Sprintf("%.4f", c.GammaRatio),
				fmt.Sprintf("%.4f", c.VegaRatio),
			})
		}
		table.Render()
		output.Println()
	}

	output.Bold("Validity Checks")
	printCheck(output, "Delta within theoretical bounds", a.DeltaInBounds)
	printCheck(output, "Theta accelerates toward expiry", a.ThetaDecays)
	printCheck(output, "Gamma concentrates near expiry", a.GammaRises)
	output.Println()

	if reportPath != "" {
		output.Dim("Assessment report written to %s", reportPath)
	}
}

func printCheck(output *Output, name string, ok bool) {
	if ok {
		output.Success("  [ok] %s", name)
	} else {
		output.Warning("  [!!] %s", name)
	}
}
