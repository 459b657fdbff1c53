package cli

import (
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"coinmetrics-collector/internal/models"
	"coinmetrics-collector/internal/store"
)

func newStatusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show completed exports from the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Manifest == nil {
				output.Error("Export manifest unavailable")
				return fmt.Errorf("manifest not configured")
			}

			dataType, _ := cmd.Flags().GetString("type")
			limit, _ := cmd.Flags().GetInt("limit")

			filter := store.ExportFilter{Limit: limit}
			if dataType != "" {
				dt := models.DataType(dataType)
				if !dt.Valid() {
					return fmt.Errorf("unknown data type %q", dataType)
				}
				filter.DataType = dt
			}

			records, err := app.Manifest.ListExports(context.Background(), filter)
			if err != nil {
				output.Error("Failed to list exports: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}

			if len(records) == 0 {
				output.Dim("No exports recorded yet")
				return nil
			}

			table := tablewriter.NewWriter(output.Writer())
			table.SetHeader([]string{"Market", "Type", "Window", "Rows", "Exported"})
			for _, r := range records {
				window := r.WindowStart.Format(dateFormat) + " / " + r.WindowEnd.Format(dateFormat)
				table.Append([]string{
					r.Market,
					string(r.DataType),
					window,
					fmt.Sprintf("%d", r.Rows),
					r.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("type", "", "filter by data type (e.g. market-greeks)")
	cmd.Flags().Int("limit", 50, "maximum rows to show")
	return cmd
}
