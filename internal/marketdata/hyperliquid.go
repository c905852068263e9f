package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/config"
)

const (
	// maxFundingPages is the safety cap on history pagination depth.
	maxFundingPages = 12
	// freshEnough stops pagination once the newest point is this close to now.
	freshEnough = 4 * time.Hour
)

// HyperliquidOptions parameterise the Hyperliquid info client.
type HyperliquidOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Retry     config.RetryConfig
}

// Hyperliquid fetches predicted and historical funding from the info API.
type Hyperliquid struct {
	opts    HyperliquidOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	retry   retrier
	now     func() time.Time
}

// NewHyperliquid constructs the client.
func NewHyperliquid(opts HyperliquidOptions, logger zerolog.Logger) *Hyperliquid {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api-ui.hyperliquid.xyz/info"
	}
	log := logger.With().Str("component", "hyperliquid").Logger()
	return &Hyperliquid{
		opts:    opts,
		logger:  log,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		retry:   newRetrier(opts.Retry, log),
		now:     time.Now,
	}
}

// ExchangeName implements FundingHistorySource.
func (h *Hyperliquid) ExchangeName() string { return "Hyperliquid" }

func (h *Hyperliquid) post(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hyperliquid api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

// predictedFundings response shape:
// [["BTC", [["HlPerp", {"fundingRate":"0.0000125","fundingIntervalHours":1}], ...]], ...]
type predictedVenue struct {
	FundingRate          json.Number `json:"fundingRate"`
	FundingIntervalHours int         `json:"fundingIntervalHours"`
}

var venueExchangeNames = map[string]string{
	"HlPerp":    "Hyperliquid",
	"BinPerp":   "Binance",
	"BybitPerp": "Bybit",
	"DriftPerp": "Drift",
}

// PredictedFundings returns the current predicted funding quotes across all
// symbols and venues Hyperliquid reports, or an empty slice when unavailable.
func (h *Hyperliquid) PredictedFundings(ctx context.Context) []PredictedFunding {
	var raw []json.RawMessage
	err := h.retry.do(ctx, "predicted_fundings", func() error {
		raw = nil
		return h.post(ctx, map[string]string{"type": "predictedFundings"}, &raw)
	})
	if err != nil {
		return nil
	}

	var out []PredictedFunding
	for _, tokenEntry := range raw {
		var pair []json.RawMessage
		if err := json.Unmarshal(tokenEntry, &pair); err != nil || len(pair) != 2 {
			continue
		}
		var symbol string
		if err := json.Unmarshal(pair[0], &symbol); err != nil {
			continue
		}
		var venues [][]json.RawMessage
		if err := json.Unmarshal(pair[1], &venues); err != nil {
			continue
		}
		for _, venue := range venues {
			if len(venue) != 2 {
				continue
			}
			var venueName string
			if err := json.Unmarshal(venue[0], &venueName); err != nil {
				continue
			}
			var details predictedVenue
			if err := json.Unmarshal(venue[1], &details); err != nil {
				continue
			}
			rate, err := details.FundingRate.Float64()
			if err != nil {
				continue
			}
			interval := details.FundingIntervalHours
			if interval <= 0 {
				interval = 1
			}
			exchange := venueExchangeNames[venueName]
			if exchange == "" {
				exchange = venueName
			}
			out = append(out, PredictedFunding{
				Symbol:        symbol,
				Exchange:      exchange,
				RateDecimal:   rate,
				IntervalHours: interval,
			})
		}
	}
	return out
}

type fundingHistoryRecord struct {
	Time        int64       `json:"time"`
	FundingRate json.Number `json:"fundingRate"`
}

func (h *Hyperliquid) fetchHistoryPage(ctx context.Context, coin string, startMS int64) []fundingHistoryRecord {
	payload := map[string]any{
		"type":      "fundingHistory",
		"coin":      coin,
		"startTime": startMS,
	}
	var page []fundingHistoryRecord
	err := h.retry.do(ctx, "funding_history", func() error {
		page = nil
		return h.post(ctx, payload, &page)
	})
	if err != nil {
		return nil
	}
	return page
}

// FundingHistory fetches hourly funding history over the lookback window.
// The API limits page size, so pagination advances startTime to the last
// received timestamp until the newest point is within 4h of now or no new
// data arrives, capped at 12 pages. Points are deduplicated on timestamp and
// returned chronologically.
func (h *Hyperliquid) FundingHistory(ctx context.Context, symbol string, lookback time.Duration) []FundingHistoryPoint {
	now := h.now().UTC()
	nowMS := now.UnixMilli()
	nextStart := now.Add(-lookback).UnixMilli()

	seen := make(map[int64]float64)
	var latestMS int64

	for page := 0; page < maxFundingPages; page++ {
		records := h.fetchHistoryPage(ctx, symbol, nextStart)
		if len(records) == 0 {
			break
		}

		newAdded := 0
		for _, rec := range records {
			if rec.Time == 0 {
				continue
			}
			if _, dup := seen[rec.Time]; dup {
				continue
			}
			rate, err := rec.FundingRate.Float64()
			if err != nil {
				continue
			}
			seen[rec.Time] = rate
			newAdded++
			if rec.Time > latestMS {
				latestMS = rec.Time
			}
		}

		if latestMS > 0 && nowMS-latestMS <= freshEnough.Milliseconds() {
			break
		}
		if newAdded == 0 {
			break
		}
		nextStart = latestMS + 1
	}

	out := make([]FundingHistoryPoint, 0, len(seen))
	for ms, rate := range seen {
		out = append(out, FundingHistoryPoint{
			Time:        time.UnixMilli(ms).UTC(),
			RateDecimal: rate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// WithClock overrides the time source. Test helper.
func (h *Hyperliquid) WithClock(now func() time.Time) *Hyperliquid {
	h.now = now
	return h
}

var (
	_ FundingSource        = (*Hyperliquid)(nil)
	_ FundingHistorySource = (*Hyperliquid)(nil)
)
