package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show runs one refresh pass and prints the opportunity table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	svc := a.newService(nil, nil)
	if err := svc.Refresh(ctx, time.Now().UTC()); err != nil {
		return err
	}

	snapshot := svc.Current()
	if snapshot == nil || len(snapshot.Rows) == 0 {
		fmt.Fprintln(os.Stdout, "no opportunities evaluated")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Asset\tVenue\tDir\tLev\tSpot%\tExchange\tFunding%\tNetArb%\tAPY%")

	printed := 0
	for _, row := range snapshot.Rows {
		if opts.ProfitableOnly && !row.Profitability.Profitable {
			continue
		}
		if opts.Limit > 0 && printed >= opts.Limit {
			break
		}
		apy := ""
		if row.Profitability.Profitable {
			apy = fmt.Sprintf("%.2f", row.Profitability.AnnualizedPct)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s(%s)\t%s\t%.1fx\t%.4f\t%s\t%.4f\t%.4f\t%s\n",
			row.Asset,
			row.Protocol, row.Market,
			strings.ToUpper(string(row.Direction)),
			row.Leverage,
			row.SpotRatePct,
			row.Exchange,
			row.FundingPct,
			row.NetArbPct,
			apy,
		)
		printed++
	}
	writer.Flush()

	if len(snapshot.PerpsPairs) > 0 {
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, "perps vs perps:")
		for _, pr := range snapshot.PerpsPairs {
			fmt.Fprintf(os.Stdout, "  %s: long %s / short %s, net %.4f%% (%.2f%% APY)\n",
				pr.Asset, pr.Pair.LongExchange, pr.Pair.ShortExchange, pr.Pair.NetArb, pr.Pair.Profitability.AnnualizedPct)
		}
	}

	if len(snapshot.Diagnostics) > 0 {
		fmt.Fprintln(os.Stdout)
		for _, msg := range snapshot.Diagnostics {
			fmt.Fprintf(os.Stdout, "note: %s\n", msg)
		}
	}
	return nil
}
