package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"spot-perps-arb/internal/series"
)

// Export builds the historical series for one configuration and renders it as
// CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	built, _, err := a.buildHistory(ctx, opts.HistoryOptions)
	if err != nil {
		return err
	}
	if built.AllNaN() {
		return errors.New("requested leverage exceeds the pair's effective cap; nothing to export")
	}

	var prices series.Series
	if opts.WithPrices {
		prices = a.priceSeries(ctx, opts.Asset, built)
	}

	downsampled := downsamplePoints(built, opts.MaxPoints)
	a.Logger.Info().Int("total", len(built)).Int("exported", len(downsampled)).Msg("exporting series")

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, downsampled, prices); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSeriesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsamplePoints(points series.ArbSeries, max int) series.ArbSeries {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make(series.ArbSeries, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeSeriesCSV(path string, points series.ArbSeries, prices series.Series) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"time", "spot_rate_pct", "funding_pct", "net_arb_pct", "spot_capital_usd", "perps_capital_usd", "spot_interest_usd", "funding_interest_usd", "total_interest_usd", "compounded_earnings_usd"}
	if prices != nil {
		header = append(header, "asset_price")
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.Time.UTC().Format(time.RFC3339),
			csvFloat(p.SpotRatePct, 6),
			csvFloat(p.FundingPct, 6),
			csvFloat(p.NetArbPct, 6),
			csvFloat(p.SpotCapitalUSD, 2),
			csvFloat(p.PerpsCapitalUSD, 2),
			csvFloat(p.SpotInterestUSD, 2),
			csvFloat(p.FundingInterestUSD, 2),
			csvFloat(p.TotalInterestUSD, 2),
			csvFloat(p.CompoundedEarningsUSD, 2),
		}
		if prices != nil {
			record = append(record, csvFloat(prices.Nearest(p.Time, priceMergeTolerance), 6))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func csvFloat(v float64, places int) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', places, 64)
}

func writeSeriesPNG(path string, points series.ArbSeries) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(points))
	spot := make([]float64, 0, len(points))
	funding := make([]float64, 0, len(points))
	netArb := make([]float64, 0, len(points))
	for _, p := range points {
		// go-chart cannot plot NaN gaps; skip buckets with a missing leg.
		if math.IsNaN(p.SpotRatePct) || math.IsNaN(p.FundingPct) || math.IsNaN(p.NetArbPct) {
			continue
		}
		x = append(x, p.Time)
		spot = append(spot, p.SpotRatePct)
		funding = append(funding, p.FundingPct)
		netArb = append(netArb, p.NetArbPct)
	}
	if len(x) < 2 {
		return errors.New("not enough plottable points for PNG export")
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "APY (%)",
			ValueFormatter: pctFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Spot %",
				XValues: x,
				YValues: spot,
			},
			chart.TimeSeries{
				Name:    "Funding %",
				XValues: x,
				YValues: funding,
			},
			chart.TimeSeries{
				Name:    "Net Arb %",
				XValues: x,
				YValues: netArb,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
