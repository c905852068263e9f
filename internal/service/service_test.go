package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/alerting"
	"spot-perps-arb/internal/arb"
	"spot-perps-arb/internal/config"
	"spot-perps-arb/internal/marketdata"
	"spot-perps-arb/internal/metrics"
)

type fakeRates struct {
	records []marketdata.CurrentRate
}

func (f *fakeRates) CurrentRates(context.Context) []marketdata.CurrentRate { return f.records }

type fakeStaking struct {
	records []marketdata.CurrentStaking
}

func (f *fakeStaking) CurrentStakingRates(context.Context) []marketdata.CurrentStaking {
	return f.records
}

type fakeFunding struct {
	quotes []marketdata.PredictedFunding
}

func (f *fakeFunding) PredictedFundings(context.Context) []marketdata.PredictedFunding {
	return f.quotes
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.notes = append(r.notes, note)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

func serviceTokens() config.TokenConfig {
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

func serviceConfig() *config.Config {
	return &config.Config{
		Arb: config.ArbConfig{
			TargetHours:     8760,
			DisplayLeverage: 2.0,
			Variants:        map[string][]string{"SOL": {"SOL"}},
		},
		Alerting: config.AlertingConfig{
			Enabled:      true,
			ThresholdPct: 1.0,
			Cooldown:     time.Hour,
			Channels:     []string{"telegram"},
		},
	}
}

func goodRates() *fakeRates {
	return &fakeRates{records: []marketdata.CurrentRate{
		{Address: "solBank", LendingRate: 6.0, BorrowingRate: 9.0},
		{Address: "usdcBank", LendingRate: 4.0, BorrowingRate: 7.0},
	}}
}

func goodFunding() *fakeFunding {
	return &fakeFunding{quotes: []marketdata.PredictedFunding{
		{Symbol: "SOL", Exchange: "Hyperliquid", RateDecimal: 0.00005, IntervalHours: 1},
		{Symbol: "SOL", Exchange: "Drift", RateDecimal: 0.00002, IntervalHours: 1},
	}}
}

func newService(cfg *config.Config, rates *fakeRates, funding *fakeFunding, notifier alerting.Notifier) *Service {
	return New(
		cfg,
		serviceTokens(),
		nil,
		rates,
		&fakeStaking{},
		[]marketdata.FundingSource{funding},
		arb.CapLeveragePolicy{},
		metrics.New(),
		notifier,
		zerolog.Nop(),
	)
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	svc := newService(serviceConfig(), goodRates(), goodFunding(), nil)

	if svc.Current() != nil {
		t.Fatal("snapshot must be nil before the first refresh")
	}

	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	if err := svc.Refresh(context.Background(), at); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	snapshot := svc.Current()
	if snapshot == nil {
		t.Fatal("expected a snapshot")
	}
	if !snapshot.At.Equal(at) {
		t.Fatalf("snapshot at = %v", snapshot.At)
	}
	// SOL long and short, each against two funding venues.
	if len(snapshot.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(snapshot.Rows))
	}
	// Rows sort by net arb ascending: most profitable first.
	for i := 1; i < len(snapshot.Rows); i++ {
		if snapshot.Rows[i-1].NetArbPct > snapshot.Rows[i].NetArbPct {
			t.Fatal("rows not sorted by net arb")
		}
	}
}

func TestRefreshBestRow(t *testing.T) {
	svc := newService(serviceConfig(), goodRates(), goodFunding(), nil)
	if err := svc.Refresh(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}

	snapshot := svc.Current()
	if snapshot.Best == nil {
		t.Fatal("expected a best row with positive funding on a long")
	}
	// Long at Hyperliquid pays the most funding here.
	if snapshot.Best.Direction != arb.Long || snapshot.Best.Exchange != "Hyperliquid" {
		t.Fatalf("best = %+v", snapshot.Best)
	}
	if !snapshot.Best.Profitability.Profitable {
		t.Fatal("best row must be profitable")
	}
}

func TestRefreshEmptyRatesFails(t *testing.T) {
	svc := newService(serviceConfig(), &fakeRates{}, goodFunding(), nil)

	err := svc.Refresh(context.Background(), time.Now())
	if !errors.Is(err, arb.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if svc.Current() != nil {
		t.Fatal("failed refresh must not publish a snapshot")
	}
}

func TestRefreshPerpsPairs(t *testing.T) {
	svc := newService(serviceConfig(), goodRates(), goodFunding(), nil)
	if err := svc.Refresh(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}

	snapshot := svc.Current()
	if len(snapshot.PerpsPairs) != 1 {
		t.Fatalf("perps pairs = %d, want 1", len(snapshot.PerpsPairs))
	}
	pair := snapshot.PerpsPairs[0]
	if pair.Asset != "SOL" || pair.Pair == nil {
		t.Fatalf("pair = %+v", pair)
	}
	// Long the cheaper funding venue, short the richer one.
	if pair.Pair.LongExchange != "Drift" || pair.Pair.ShortExchange != "Hyperliquid" {
		t.Fatalf("pair orientation = %+v", pair.Pair)
	}
}

func TestAlertDispatchAndCooldown(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newService(serviceConfig(), goodRates(), goodFunding(), notifier)

	ctx := context.Background()
	if err := svc.Refresh(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}
	if notifier.count() != 1 {
		t.Fatalf("alerts = %d, want 1", notifier.count())
	}

	// Same best configuration within the cooldown window: no second alert.
	if err := svc.Refresh(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}
	if notifier.count() != 1 {
		t.Fatalf("cooldown violated, alerts = %d", notifier.count())
	}

	note := notifier.notes[0]
	if note.Asset != "SOL" || note.Exchange != "Hyperliquid" {
		t.Fatalf("note = %+v", note)
	}
}

func TestAlertBelowThresholdSkipped(t *testing.T) {
	cfg := serviceConfig()
	cfg.Alerting.ThresholdPct = 100000.0

	notifier := &recordingNotifier{}
	svc := newService(cfg, goodRates(), goodFunding(), notifier)

	if err := svc.Refresh(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if notifier.count() != 0 {
		t.Fatalf("alerts = %d, want 0 below threshold", notifier.count())
	}
}

func TestAlertDisabled(t *testing.T) {
	cfg := serviceConfig()
	cfg.Alerting.Enabled = false

	notifier := &recordingNotifier{}
	svc := newService(cfg, goodRates(), goodFunding(), notifier)

	if err := svc.Refresh(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if notifier.count() != 0 {
		t.Fatalf("alerts = %d, alerting is disabled", notifier.count())
	}
}

func TestRunWithoutScheduler(t *testing.T) {
	svc := newService(serviceConfig(), goodRates(), goodFunding(), nil)
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("running without a scheduler must error")
	}
}
