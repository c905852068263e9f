package cli

import (
	"github.com/spf13/cobra"

	"spot-perps-arb/internal/app"
)

var (
	showProfitableOnly bool
	showLimit          int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Fetch current rates and display the opportunity table",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			ProfitableOnly: showProfitableOnly,
			Limit:          showLimit,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showProfitableOnly, "profitable-only", false, "Hide unprofitable rows")
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "Maximum rows to display (0 = all)")
}
