package series

import (
	"math"
	"sort"
	"time"
)

// Point is one timestamped value.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is a time-ordered sequence of points.
type Series []Point

// Sort orders the series chronologically in place.
func (s Series) Sort() {
	sort.Slice(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
}

// Values extracts the value column.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Scale multiplies every value by factor, returning a new series.
func (s Series) Scale(factor float64) Series {
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Time: p.Time, Value: p.Value * factor}
	}
	return out
}

// ArbPoint is one 4h bucket of the historical arbitrage series. Time is
// bucket-centered (floor +2h). Rates are APY percentages; the net-arb sign
// convention (negative == profitable) is preserved from the calculators.
// CompoundedEarningsUSD is cumulative from the window start, with one bucket
// of shift: a bucket's compounded earnings never include its own rate.
type ArbPoint struct {
	Time                  time.Time `json:"time"`
	SpotRatePct           float64   `json:"spot_rate_pct"`
	FundingPct            float64   `json:"funding_pct"`
	NetArbPct             float64   `json:"net_arb_pct"`
	SpotInterestUSD       float64   `json:"spot_interest_usd"`
	FundingInterestUSD    float64   `json:"funding_interest_usd"`
	TotalInterestUSD      float64   `json:"total_interest_usd"`
	CompoundedEarningsUSD float64   `json:"compounded_earnings_usd"`
	SpotCapitalUSD        float64   `json:"spot_capital_usd"`
	PerpsCapitalUSD       float64   `json:"perps_capital_usd"`
}

// ArbSeries is the assembled backtest series for one configuration.
type ArbSeries []ArbPoint

// TotalInterestUSD sums realized interest over the series, skipping NaNs.
func (s ArbSeries) TotalInterestUSD() float64 {
	total := 0.0
	for _, p := range s {
		if !math.IsNaN(p.TotalInterestUSD) {
			total += p.TotalInterestUSD
		}
	}
	return total
}

// AllNaN reports whether every spot value is NaN (the leverage-cap exclusion
// state).
func (s ArbSeries) AllNaN() bool {
	if len(s) == 0 {
		return false
	}
	for _, p := range s {
		if !math.IsNaN(p.SpotRatePct) {
			return false
		}
	}
	return true
}
