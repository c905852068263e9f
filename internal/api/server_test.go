package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/arb"
	"spot-perps-arb/internal/config"
	"spot-perps-arb/internal/marketdata"
	"spot-perps-arb/internal/metrics"
	"spot-perps-arb/internal/service"
)

type stubRates struct {
	records []marketdata.CurrentRate
}

func (s *stubRates) CurrentRates(context.Context) []marketdata.CurrentRate { return s.records }

type stubStaking struct{}

func (stubStaking) CurrentStakingRates(context.Context) []marketdata.CurrentStaking { return nil }

type stubFunding struct {
	quotes []marketdata.PredictedFunding
}

func (s *stubFunding) PredictedFundings(context.Context) []marketdata.PredictedFunding {
	return s.quotes
}

func apiConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Environment: "development"},
		Server: config.ServerConfig{Enabled: true, Addr: ":0"},
		Arb: config.ArbConfig{
			TargetHours:     8760,
			DisplayLeverage: 2.0,
			Variants:        map[string][]string{"SOL": {"SOL"}},
		},
	}
}

func apiTokens() config.TokenConfig {
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

func defaultRates() []marketdata.CurrentRate {
	return []marketdata.CurrentRate{
		{Address: "solBank", LendingRate: 6.0, BorrowingRate: 9.0},
		{Address: "usdcBank", LendingRate: 4.0, BorrowingRate: 7.0},
	}
}

func newTestServerWithRates(t *testing.T, refreshed bool, rates []marketdata.CurrentRate, funding []marketdata.PredictedFunding) *Server {
	t.Helper()

	cfg := apiConfig()
	m := metrics.New()
	svc := service.New(
		cfg,
		apiTokens(),
		nil,
		&stubRates{records: rates},
		stubStaking{},
		[]marketdata.FundingSource{&stubFunding{quotes: funding}},
		arb.CapLeveragePolicy{},
		m,
		nil,
		zerolog.Nop(),
	)

	if refreshed {
		if err := svc.Refresh(context.Background(), time.Now()); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
	}
	return NewServer(cfg, svc, m, zerolog.Nop())
}

func newTestServer(t *testing.T, refreshed bool, funding []marketdata.PredictedFunding) *Server {
	t.Helper()
	return newTestServerWithRates(t, refreshed, defaultRates(), funding)
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func positiveFunding() []marketdata.PredictedFunding {
	return []marketdata.PredictedFunding{
		{Symbol: "SOL", Exchange: "Hyperliquid", RateDecimal: 0.00005, IntervalHours: 1},
	}
}

func TestHealthzWarmingUp(t *testing.T) {
	srv := newTestServer(t, false, positiveFunding())

	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 before the first snapshot", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "warming_up") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestHealthzReady(t *testing.T) {
	srv := newTestServer(t, true, positiveFunding())

	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOpportunities(t *testing.T) {
	srv := newTestServer(t, true, positiveFunding())

	rec := get(t, srv, "/api/v1/opportunities")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var snapshot service.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snapshot.Rows) == 0 {
		t.Fatal("expected rows")
	}
	if snapshot.TargetHours != 8760 {
		t.Fatalf("target hours = %d", snapshot.TargetHours)
	}
}

func TestBestFound(t *testing.T) {
	srv := newTestServer(t, true, positiveFunding())

	rec := get(t, srv, "/api/v1/best")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"best"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestBestNoOpportunityIs404(t *testing.T) {
	// Expensive borrowing in both directions with negligible funding: every
	// pairing loses money.
	costly := []marketdata.CurrentRate{
		{Address: "solBank", LendingRate: 1.0, BorrowingRate: 20.0},
		{Address: "usdcBank", LendingRate: 1.0, BorrowingRate: 20.0},
	}
	srv := newTestServerWithRates(t, true, costly, []marketdata.PredictedFunding{
		{Symbol: "SOL", Exchange: "Hyperliquid", RateDecimal: 0.0000001, IntervalHours: 1},
	})

	rec := get(t, srv, "/api/v1/best")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when markets agree, body %s", rec.Code, rec.Body.String())
	}
}

func TestBestNoSnapshotIs503(t *testing.T) {
	srv := newTestServer(t, false, positiveFunding())

	rec := get(t, srv, "/api/v1/best")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 before the first snapshot", rec.Code)
	}
}

func TestPerpsPairs(t *testing.T) {
	srv := newTestServer(t, true, []marketdata.PredictedFunding{
		{Symbol: "SOL", Exchange: "Hyperliquid", RateDecimal: 0.00005, IntervalHours: 1},
		{Symbol: "SOL", Exchange: "Drift", RateDecimal: 0.00002, IntervalHours: 1},
	})

	rec := get(t, srv, "/api/v1/perps-pairs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Hyperliquid") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, true, positiveFunding())

	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "arbwatcher_refresh_total") {
		t.Fatalf("metrics body missing counters:\n%s", rec.Body.String())
	}
}
