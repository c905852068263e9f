package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/arb"
	"spot-perps-arb/internal/cache"
	"spot-perps-arb/internal/config"
	"spot-perps-arb/internal/marketdata"
	"spot-perps-arb/internal/series"
)

type stubRates struct {
	byBank map[string][]marketdata.RateHistoryPoint
}

func (s *stubRates) HourlyRates(_ context.Context, bankAddress, _ string, _ int) []marketdata.RateHistoryPoint {
	return s.byBank[bankAddress]
}

type stubStaking struct{}

func (stubStaking) HourlyStaking(context.Context, string, int) []marketdata.StakingHistoryPoint {
	return nil
}

type stubFunding struct {
	name   string
	points []marketdata.FundingHistoryPoint
}

func (s *stubFunding) FundingHistory(context.Context, string, time.Duration) []marketdata.FundingHistoryPoint {
	return s.points
}

func (s *stubFunding) ExchangeName() string { return s.name }

func searchTokens() config.TokenConfig {
	return config.TokenConfig{
		"SOL": {
			Mint: "solMint",
			Banks: []config.Bank{
				{Protocol: "marginfi", Market: "main", Bank: "solBank", MaxLeverage: map[string]float64{"long": 3.0, "short": 3.0}},
			},
		},
		"USDC": {
			Mint: "usdcMint",
			Banks: []config.Bank{
				{Protocol: "marginfi", Market: "main", Bank: "usdcBank", MaxLeverage: map[string]float64{"long": 3.0, "short": 3.0}},
			},
		},
	}
}

func hourly(start time.Time, n int, lend, borrow float64) []marketdata.RateHistoryPoint {
	out := make([]marketdata.RateHistoryPoint, n)
	for i := range out {
		out[i] = marketdata.RateHistoryPoint{
			HourBucket:       start.Add(time.Duration(i) * time.Hour),
			AvgLendingRate:   lend,
			AvgBorrowingRate: borrow,
		}
	}
	return out
}

func fundingSeries(start time.Time, n int, rate float64) []marketdata.FundingHistoryPoint {
	out := make([]marketdata.FundingHistoryPoint, n)
	for i := range out {
		out[i] = marketdata.FundingHistoryPoint{Time: start.Add(time.Duration(i) * time.Hour), RateDecimal: rate}
	}
	return out
}

func newFinder(rates *stubRates, funding ...marketdata.FundingHistorySource) *Finder {
	tokens := searchTokens()
	builder := series.NewBuilder(tokens, rates, stubStaking{}, funding, arb.CapLeveragePolicy{}, cache.New(time.Minute, 128), zerolog.Nop())
	return NewFinder(tokens, builder, arb.CapLeveragePolicy{}, zerolog.Nop())
}

func defaultOpts() Options {
	return Options{
		Variants:        []string{"SOL"},
		PerpSymbol:      "SOL",
		Direction:       arb.Long,
		MaxLeverage:     3.0,
		LookbackHours:   24,
		TotalCapitalUSD: 10000,
		Exchanges:       []string{"Hyperliquid", "Drift"},
	}
}

func TestFindBestConfigPicksHighestROE(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rates := &stubRates{byBank: map[string][]marketdata.RateHistoryPoint{
		"solBank":  hourly(start, 8, 6.0, 9.0),
		"usdcBank": hourly(start, 8, 4.0, 7.0),
	}}
	// Drift pays more funding than Hyperliquid.
	hl := &stubFunding{name: "Hyperliquid", points: fundingSeries(start, 8, 0.00002)}
	drift := &stubFunding{name: "Drift", points: fundingSeries(start, 8, 0.00005)}

	best, err := newFinder(rates, hl, drift).FindBestConfig(context.Background(), defaultOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if best.Exchange != "Drift" {
		t.Fatalf("best exchange = %s, want Drift", best.Exchange)
	}
	if best.Asset != "SOL" || best.Protocol != "marginfi" || best.Market != "main" {
		t.Fatalf("best location = %+v", best)
	}
	// Funding scales with leverage while the spot fee grows slower here, so
	// the cap is the winner.
	if best.Leverage != 3.0 {
		t.Fatalf("best leverage = %v, want 3.0", best.Leverage)
	}
	if best.ROEPct <= 0 {
		t.Fatalf("roe = %v, must be strictly positive", best.ROEPct)
	}
	if len(best.Series) == 0 {
		t.Fatal("winner must carry its series")
	}
}

func TestFindBestConfigNoOpportunity(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rates := &stubRates{byBank: map[string][]marketdata.RateHistoryPoint{
		"solBank":  hourly(start, 8, 1.0, 9.0),
		"usdcBank": hourly(start, 8, 4.0, 20.0),
	}}
	// Negative funding on a long: everything loses money.
	hl := &stubFunding{name: "Hyperliquid", points: fundingSeries(start, 8, -0.00005)}

	opts := defaultOpts()
	opts.Exchanges = []string{"Hyperliquid"}

	_, err := newFinder(rates, hl).FindBestConfig(context.Background(), opts)
	if !errors.Is(err, arb.ErrNoOpportunity) {
		t.Fatalf("expected ErrNoOpportunity, got %v", err)
	}
}

func TestFindBestConfigDataUnavailable(t *testing.T) {
	// No rate history at all: nothing can be evaluated.
	rates := &stubRates{byBank: map[string][]marketdata.RateHistoryPoint{}}
	hl := &stubFunding{name: "Hyperliquid"}

	_, err := newFinder(rates, hl).FindBestConfig(context.Background(), defaultOpts())
	if !errors.Is(err, arb.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestFindBestConfigShortMinLeverage(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rates := &stubRates{byBank: map[string][]marketdata.RateHistoryPoint{
		"solBank":  hourly(start, 8, 6.0, 2.0),
		"usdcBank": hourly(start, 8, 9.0, 7.0),
	}}
	// Strongly negative funding favors the short.
	hl := &stubFunding{name: "Hyperliquid", points: fundingSeries(start, 8, -0.0001)}

	opts := defaultOpts()
	opts.Direction = arb.Short
	opts.Exchanges = []string{"Hyperliquid"}

	best, err := newFinder(rates, hl).FindBestConfig(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Shorts below 2x are not delta-neutral and must never be selected.
	if best.Leverage < 2.0 {
		t.Fatalf("short leverage = %v, must be >= 2.0", best.Leverage)
	}
}

func TestFindBestConfigTieKeepsFirst(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rates := &stubRates{byBank: map[string][]marketdata.RateHistoryPoint{
		"solBank":  hourly(start, 8, 6.0, 9.0),
		"usdcBank": hourly(start, 8, 4.0, 7.0),
	}}
	// Identical rates on both venues: every leverage/exchange ties within a
	// leverage step, so the first-visited exchange must win.
	hl := &stubFunding{name: "Hyperliquid", points: fundingSeries(start, 8, 0.00005)}
	drift := &stubFunding{name: "Drift", points: fundingSeries(start, 8, 0.00005)}

	opts := defaultOpts()
	opts.MaxLeverage = 1.0

	best, err := newFinder(rates, hl, drift).FindBestConfig(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.Exchange != "Hyperliquid" {
		t.Fatalf("tie must keep the first-visited exchange, got %s", best.Exchange)
	}
}

func TestFindBestConfigContextCancelled(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rates := &stubRates{byBank: map[string][]marketdata.RateHistoryPoint{
		"solBank":  hourly(start, 8, 6.0, 9.0),
		"usdcBank": hourly(start, 8, 4.0, 7.0),
	}}
	hl := &stubFunding{name: "Hyperliquid", points: fundingSeries(start, 8, 0.00005)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newFinder(rates, hl).FindBestConfig(ctx, defaultOpts())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLeverageLadder(t *testing.T) {
	got := leverageLadder(2.5)
	want := []float64{1.0, 1.5, 2.0, 2.5}
	if len(got) != len(want) {
		t.Fatalf("ladder = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ladder = %v, want %v", got, want)
		}
	}
}
