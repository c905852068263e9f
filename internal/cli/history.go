package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"spot-perps-arb/internal/app"
)

var historyOpts app.HistoryOptions

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Build and print the historical arbitrage series for one configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateHistoryFlags(); err != nil {
			return err
		}
		return getApp().History(cmd.Context(), historyOpts)
	},
}

func validateHistoryFlags() error {
	if historyOpts.Asset == "" {
		return fmt.Errorf("--asset is required")
	}
	if historyOpts.Protocol == "" {
		return fmt.Errorf("--protocol is required")
	}
	if historyOpts.Market == "" {
		return fmt.Errorf("--market is required")
	}
	return nil
}

func registerHistoryFlags(cmd *cobra.Command, opts *app.HistoryOptions) {
	cmd.Flags().StringVar(&opts.Asset, "asset", "", "Spot variant symbol (e.g. JITOSOL)")
	cmd.Flags().StringVar(&opts.Protocol, "protocol", "", "Lending protocol name")
	cmd.Flags().StringVar(&opts.Market, "market", "", "Protocol market name")
	cmd.Flags().StringVar(&opts.Direction, "direction", "long", "Spot direction: long or short")
	cmd.Flags().Float64Var(&opts.Leverage, "leverage", 2.0, "Spot leverage")
	cmd.Flags().StringVar(&opts.Exchange, "exchange", "Hyperliquid", "Funding venue: Hyperliquid or Drift")
	cmd.Flags().IntVar(&opts.LookbackHours, "lookback", 0, "Lookback window in hours (defaults to config)")
	cmd.Flags().Float64Var(&opts.CapitalUSD, "capital", 0, "Total capital in USD (defaults to config)")
	cmd.Flags().BoolVar(&opts.WithPrices, "with-prices", false, "Annotate buckets with the asset price")
}

func init() {
	registerHistoryFlags(historyCmd, &historyOpts)
}
