package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"spot-perps-arb/internal/arb"
	"spot-perps-arb/internal/series"
)

// priceMergeTolerance bounds the nearest-timestamp match between rate buckets
// and the price feed, which do not share bucket boundaries.
const priceMergeTolerance = 3 * time.Hour

// baseSymbolFor maps a spot variant to its base asset, which is also the perp
// symbol on funding venues. Unknown variants map to themselves.
func (a *App) baseSymbolFor(asset string) string {
	upper := strings.ToUpper(asset)
	for base, variants := range a.Config.Arb.Variants {
		for _, v := range variants {
			if strings.EqualFold(v, upper) {
				return base
			}
		}
	}
	return upper
}

func (a *App) buildHistory(ctx context.Context, opts HistoryOptions) (series.ArbSeries, arb.Direction, error) {
	direction, ok := arb.ParseDirection(opts.Direction)
	if !ok {
		return nil, "", fmt.Errorf("invalid direction %q (want long or short)", opts.Direction)
	}
	if opts.Leverage < 1 {
		return nil, "", arb.ErrInvalidLeverage
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

	built, err := builder.BuildArbHistory(ctx, series.Request{
		Asset:           strings.ToUpper(opts.Asset),
		Protocol:        opts.Protocol,
		Market:          opts.Market,
		Direction:       direction,
		Leverage:        opts.Leverage,
		Exchange:        opts.Exchange,
		PerpSymbol:      a.baseSymbolFor(opts.Asset),
		LookbackHours:   lookback,
		TotalCapitalUSD: capital,
	})
	if err != nil {
		return nil, "", err
	}
	return built, direction, nil
}

// priceSeries fetches the asset's price history covering the built series
// window, for nearest-match annotation.
func (a *App) priceSeries(ctx context.Context, asset string, built series.ArbSeries) series.Series {
	if len(built) == 0 {
		return nil
	}
	mint := a.tokens().Mint(asset)
	if mint == "" {
		return nil
	}

	from := built[0].Time.Add(-priceMergeTolerance)
	to := built[len(built)-1].Time.Add(priceMergeTolerance)
	points := a.newBirdeye().PriceHistory(ctx, mint, from, to, "2H")

	out := make(series.Series, 0, len(points))
	for _, p := range points {
		out = append(out, series.Point{Time: p.Time, Value: p.Price})
	}
	out.Sort()
	return out
}

// History builds and prints the 4h historical arbitrage series for one
// configuration.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	built, _, err := a.buildHistory(ctx, opts)
	if err != nil {
		return err
	}
	if built.AllNaN() {
		fmt.Fprintln(os.Stdout, "requested leverage exceeds the pair's effective cap; no usable series")
		return nil
	}

	var prices series.Series
	if opts.WithPrices {
		prices = a.priceSeries(ctx, opts.Asset, built)
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	header := "Time (UTC)\tSpot%\tFunding%\tNetArb%\tSpot$\tFunding$\tTotal$\tCompound$"
	if prices != nil {
		header += "\tPrice"
	}
	fmt.Fprintln(writer, header)

	for _, p := range built {
		line := fmt.Sprintf(
			"%s\t%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f",
			p.Time.UTC().Format(time.RFC3339),
			formatPct(p.SpotRatePct),
			formatPct(p.FundingPct),
			formatPct(p.NetArbPct),
			p.SpotInterestUSD,
			p.FundingInterestUSD,
			p.TotalInterestUSD,
			p.CompoundedEarningsUSD,
		)
		if prices != nil {
			price := prices.Nearest(p.Time, priceMergeTolerance)
			if math.IsNaN(price) {
				line += "\t-"
			} else {
				line += fmt.Sprintf("\t%.4f", price)
			}
		}
		fmt.Fprintln(writer, line)
	}
	writer.Flush()

	capital := opts.CapitalUSD
	if capital <= 0 {
		capital = a.Config.Arb.TotalCapitalUSD
	}
	fmt.Fprintf(os.Stdout, "\ntotal interest: $%.2f  ROE: %.2f%% on $%.0f\n",
		built.TotalInterestUSD(), series.ROEPct(built, capital), capital)
	return nil
}

func formatPct(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}
