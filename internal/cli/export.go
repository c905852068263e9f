package cli

import (
	"github.com/spf13/cobra"

	"spot-perps-arb/internal/app"
)

var exportOpts app.ExportOptions

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the historical arbitrage series as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		historyOpts = exportOpts.HistoryOptions
		if err := validateHistoryFlags(); err != nil {
			return err
		}
		return getApp().Export(cmd.Context(), exportOpts)
	},
}

func init() {
	registerHistoryFlags(exportCmd, &exportOpts.HistoryOptions)
	exportCmd.Flags().StringVar(&exportOpts.PNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportOpts.CSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportOpts.MaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
