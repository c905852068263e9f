package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"spot-perps-arb/internal/arb"
	"spot-perps-arb/internal/search"
)

// Best runs the exhaustive best-configuration search for a base asset and
// prints the winner.
func (a *App) Best(ctx context.Context, opts BestOptions) error {
	direction, ok := arb.ParseDirection(opts.Direction)
	if !ok {
		return fmt.Errorf("invalid direction %q (want long or short)", opts.Direction)
	}

	base := strings.ToUpper(opts.Asset)
	variants := a.Config.Arb.Variants[base]
	if len(variants) == 0 {
		return fmt.Errorf("no variants configured for asset %q", base)
	}

	maxLeverage := opts.MaxLeverage
	if maxLeverage <= 0 {
		maxLeverage = a.Config.Arb.MaxLeverage
	}
	lookback := opts.LookbackHours
	if lookback <= 0 {
		lookback = a.Config.Arb.LookbackHours
	}
	capital := opts.CapitalUSD
	if capital <= 0 {
		capital = a.Config.Arb.TotalCapitalUSD
	}

	tokens := a.tokens()
	builder := a.newBuilder(tokens)
	finder := search.NewFinder(tokens, builder, arb.CapLeveragePolicy{}, a.Logger)

	best, err := finder.FindBestConfig(ctx, search.Options{
		Variants:         variants,
		PerpSymbol:       base,
		Direction:        direction,
		MaxLeverage:      maxLeverage,
		ShortMinLeverage: a.Config.Arb.ShortMinLeverage,
		LookbackHours:    lookback,
		TotalCapitalUSD:  capital,
		Exchanges:        []string{"Hyperliquid", "Drift"},
	})
	if err != nil {
		switch {
		case errors.Is(err, arb.ErrNoOpportunity):
			fmt.Fprintf(os.Stdout, "no profitable configuration over the last %dh\n", lookback)
			return nil
		case errors.Is(err, arb.ErrDataUnavailable):
			return fmt.Errorf("no candidate could be evaluated (sources unavailable?): %w", err)
		default:
			return err
		}
	}

	fmt.Fprintf(os.Stdout, "best configuration over the last %dh:\n", lookback)
	fmt.Fprintf(os.Stdout, "  asset:     %s\n", best.Asset)
	fmt.Fprintf(os.Stdout, "  venue:     %s (%s)\n", best.Protocol, best.Market)
	fmt.Fprintf(os.Stdout, "  direction: %s\n", strings.ToUpper(string(best.Direction)))
	fmt.Fprintf(os.Stdout, "  leverage:  %.1fx\n", best.Leverage)
	fmt.Fprintf(os.Stdout, "  exchange:  %s\n", best.Exchange)
	fmt.Fprintf(os.Stdout, "  realized:  %.2f%% ROE on $%.0f (%d buckets)\n", best.ROEPct, capital, len(best.Series))
	return nil
}
