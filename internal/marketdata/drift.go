package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/config"
)

const (
	driftMarkets24hPath   = "/markets24h"
	driftFundingRatesPath = "/fundingRates"
	perpSymbolSuffix      = "-PERP"
)

// DriftOptions parameterise the Drift data API client.
type DriftOptions struct {
	BaseURL       string
	Timeout       time.Duration
	MarketIndexes map[string]int
	Retry         config.RetryConfig
}

// Drift fetches funding snapshots and history from the Drift data API.
type Drift struct {
	opts    DriftOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	retry   retrier
}

// NewDrift constructs the client.
func NewDrift(opts DriftOptions, logger zerolog.Logger) *Drift {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://mainnet-beta.api.drift.trade"
	}
	log := logger.With().Str("component", "drift").Logger()
	return &Drift{
		opts:    opts,
		logger:  log,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		retry:   newRetrier(opts.Retry, log),
	}
}

// ExchangeName implements FundingHistorySource.
func (d *Drift) ExchangeName() string { return "Drift" }

func (d *Drift) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := d.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("drift api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

type driftMarket struct {
	Symbol      string  `json:"symbol"`
	MarketType  string  `json:"marketType"`
	MarketIndex int     `json:"marketIndex"`
	AvgFunding  float64 `json:"avgFunding"`
}

type driftMarketsResponse struct {
	Data []driftMarket `json:"data"`
}

// PredictedFundings returns hourly funding quotes from the 24h market
// snapshot. avgFunding arrives as a percentage and is converted to decimal;
// the snapshot is already normalized to a 1h interval.
func (d *Drift) PredictedFundings(ctx context.Context) []PredictedFunding {
	var markets driftMarketsResponse
	err := d.retry.do(ctx, "markets_24h", func() error {
		markets = driftMarketsResponse{}
		return d.getJSON(ctx, driftMarkets24hPath, nil, &markets)
	})
	if err != nil {
		return nil
	}

	var out []PredictedFunding
	for _, market := range markets.Data {
		if market.MarketType != "" && !strings.EqualFold(market.MarketType, "perp") {
			continue
		}
		if !strings.HasSuffix(market.Symbol, perpSymbolSuffix) {
			continue
		}
		symbol := strings.TrimSuffix(market.Symbol, perpSymbolSuffix)
		out = append(out, PredictedFunding{
			Symbol:        symbol,
			Exchange:      "Drift",
			RateDecimal:   market.AvgFunding / 100.0,
			IntervalHours: 1,
		})
	}
	return out
}

// fundingRates records carry the raw on-chain precision values: fundingRate
// in 1e9 quote precision and oraclePriceTwap in 1e6 price precision. The
// hourly decimal rate is their ratio.
type driftFundingRecord struct {
	TS              json.Number `json:"ts"`
	FundingRate     json.Number `json:"fundingRate"`
	OraclePriceTwap json.Number `json:"oraclePriceTwap"`
}

type driftFundingResponse struct {
	FundingRates []driftFundingRecord `json:"fundingRates"`
}

// FundingHistory fetches hourly funding records for the symbol's market index
// over the lookback window. Symbols without a configured market index return
// an empty series.
func (d *Drift) FundingHistory(ctx context.Context, symbol string, lookback time.Duration) []FundingHistoryPoint {
	marketIndex, ok := d.opts.MarketIndexes[strings.ToUpper(symbol)]
	if !ok {
		d.logger.Debug().Str("symbol", symbol).Msg("no drift market index configured")
		return nil
	}

	now := time.Now().UTC()
	query := url.Values{}
	query.Set("marketIndex", strconv.Itoa(marketIndex))
	query.Set("from", strconv.FormatInt(now.Add(-lookback).Unix(), 10))
	query.Set("to", strconv.FormatInt(now.Unix(), 10))

	var payload driftFundingResponse
	err := d.retry.do(ctx, "funding_rates", func() error {
		payload = driftFundingResponse{}
		return d.getJSON(ctx, driftFundingRatesPath, query, &payload)
	})
	if err != nil {
		return nil
	}

	out := make([]FundingHistoryPoint, 0, len(payload.FundingRates))
	for _, rec := range payload.FundingRates {
		ts, err := strconv.ParseInt(rec.TS.String(), 10, 64)
		if err != nil || ts == 0 {
			continue
		}
		fundingRaw, err := rec.FundingRate.Float64()
		if err != nil {
			continue
		}
		twapRaw, err := rec.OraclePriceTwap.Float64()
		if err != nil || twapRaw == 0 {
			continue
		}
		rate := (fundingRaw / 1e9) / (twapRaw / 1e6)
		out = append(out, FundingHistoryPoint{
			Time:        time.Unix(ts, 0).UTC(),
			RateDecimal: rate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

var (
	_ FundingSource        = (*Drift)(nil)
	_ FundingHistorySource = (*Drift)(nil)
)
