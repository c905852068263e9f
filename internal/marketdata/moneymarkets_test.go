package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/config"
)

func fastRetry() config.RetryConfig {
	return config.RetryConfig{InitialDelay: time.Millisecond, Multiplier: 1.0, MaxAttempts: 2}
}

func TestMoneyMarketsCurrentRatesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != currentRatesPath {
			t.Fatalf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"address":"solBank","lendingRate":6.1,"borrowingRate":9.2}]}`))
	}))
	defer srv.Close()

	mm := NewMoneyMarkets(MoneyMarketsOptions{BaseURL: srv.URL, Retry: fastRetry()}, zerolog.Nop())
	rates := mm.CurrentRates(context.Background())
	if len(rates) != 1 {
		t.Fatalf("expected 1 rate, got %d", len(rates))
	}
	if rates[0].Address != "solBank" || rates[0].LendingRate != 6.1 || rates[0].BorrowingRate != 9.2 {
		t.Fatalf("rate = %+v", rates[0])
	}
}

func TestMoneyMarketsBareArrayResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"address":"usdcMint","apy":0.041}]`))
	}))
	defer srv.Close()

	mm := NewMoneyMarkets(MoneyMarketsOptions{BaseURL: srv.URL, Retry: fastRetry()}, zerolog.Nop())
	staking := mm.CurrentStakingRates(context.Background())
	if len(staking) != 1 || staking[0].APY != 0.041 {
		t.Fatalf("staking = %+v", staking)
	}
}

func TestMoneyMarketsHourlyRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("bank") != "solBank" || q.Get("protocol") != "marginfi" || q.Get("limit") != "24" {
			t.Fatalf("query = %v", q)
		}
		w.Write([]byte(`{"data":[
			{"hourBucket":"2026-08-01T00:00:00Z","avgLendingRate":6.0,"avgBorrowingRate":9.0},
			{"hourBucket":"not-a-time","avgLendingRate":1.0,"avgBorrowingRate":1.0},
			{"hourBucket":"2026-08-01T01:00:00Z","avgLendingRate":6.5,"avgBorrowingRate":9.5}
		]}`))
	}))
	defer srv.Close()

	mm := NewMoneyMarkets(MoneyMarketsOptions{BaseURL: srv.URL, Retry: fastRetry()}, zerolog.Nop())
	points := mm.HourlyRates(context.Background(), "solBank", "marginfi", 24)
	if len(points) != 2 {
		t.Fatalf("malformed rows must be dropped, got %d points", len(points))
	}
	if points[0].AvgLendingRate != 6.0 || points[1].AvgBorrowingRate != 9.5 {
		t.Fatalf("points = %+v", points)
	}
	if !points[0].HourBucket.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("bucket = %v", points[0].HourBucket)
	}
}

func TestMoneyMarketsRetriesToEmpty(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mm := NewMoneyMarkets(MoneyMarketsOptions{BaseURL: srv.URL, Retry: fastRetry()}, zerolog.Nop())
	if rates := mm.CurrentRates(context.Background()); rates != nil {
		t.Fatalf("exhausted retries must yield nil, got %v", rates)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestMoneyMarketsHourlyStaking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mint") != "jitoMint" {
			t.Fatalf("query = %v", r.URL.Query())
		}
		w.Write([]byte(`{"data":[{"hourBucket":"2026-08-01T00:00:00Z","avgApy":0.072}]}`))
	}))
	defer srv.Close()

	mm := NewMoneyMarkets(MoneyMarketsOptions{BaseURL: srv.URL, Retry: fastRetry()}, zerolog.Nop())
	points := mm.HourlyStaking(context.Background(), "jitoMint", 24)
	if len(points) != 1 || points[0].AvgAPY != 0.072 {
		t.Fatalf("points = %+v", points)
	}
}
