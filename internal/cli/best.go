package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"spot-perps-arb/internal/app"
)

var (
	bestAsset       string
	bestDirection   string
	bestMaxLeverage float64
	bestLookback    int
	bestCapital     float64
)

var bestCmd = &cobra.Command{
	Use:   "best",
	Short: "Search for the best historical configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if bestAsset == "" {
			return fmt.Errorf("--asset is required")
		}

		opts := app.BestOptions{
			Asset:         bestAsset,
			Direction:     bestDirection,
			MaxLeverage:   bestMaxLeverage,
			LookbackHours: bestLookback,
			CapitalUSD:    bestCapital,
		}
		return getApp().Best(cmd.Context(), opts)
	},
}

func init() {
	bestCmd.Flags().StringVar(&bestAsset, "asset", "", "Base asset to search (e.g. SOL)")
	bestCmd.Flags().StringVar(&bestDirection, "direction", "long", "Spot direction: long or short")
	bestCmd.Flags().Float64Var(&bestMaxLeverage, "max-leverage", 0, "Leverage ladder ceiling (defaults to config)")
	bestCmd.Flags().IntVar(&bestLookback, "lookback", 0, "Lookback window in hours (defaults to config)")
	bestCmd.Flags().Float64Var(&bestCapital, "capital", 0, "Total capital in USD (defaults to config)")
}
