package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/config"
)

const (
	currentRatesPath   = "/current-rates"
	currentStakingPath = "/current-staking-rates"
	hourlyRatesPath    = "/hourly-rates"
	hourlyStakingPath  = "/hourly-staking-rates"
)

// MoneyMarketsOptions parameterise the lending-rate aggregator client.
type MoneyMarketsOptions struct {
	BaseURL string
	Timeout time.Duration
	Retry   config.RetryConfig
}

// MoneyMarkets fetches current and historical lend/borrow/staking rates from
// the aggregator API.
type MoneyMarkets struct {
	opts    MoneyMarketsOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	retry   retrier
}

// NewMoneyMarkets constructs the client.
func NewMoneyMarkets(opts MoneyMarketsOptions, logger zerolog.Logger) *MoneyMarkets {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://historical-apy.asgard.finance"
	}
	log := logger.With().Str("component", "money_markets").Logger()
	return &MoneyMarkets{
		opts:    opts,
		logger:  log,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		retry:   newRetrier(opts.Retry, log),
	}
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func (m *MoneyMarkets) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	target := m.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("money markets api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var envelope dataEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode money markets response: %w", err)
	}
	if envelope.Data == nil {
		// Some endpoints return the array directly.
		return json.Unmarshal(payload, out)
	}
	return json.Unmarshal(envelope.Data, out)
}

// CurrentRates returns current lend/borrow quotes for all banks, or an empty
// slice when the source is unavailable.
func (m *MoneyMarkets) CurrentRates(ctx context.Context) []CurrentRate {
	var records []CurrentRate
	err := m.retry.do(ctx, "current_rates", func() error {
		records = nil
		return m.getJSON(ctx, currentRatesPath, nil, &records)
	})
	if err != nil {
		return nil
	}
	return records
}

// CurrentStakingRates returns current staking APYs by mint.
func (m *MoneyMarkets) CurrentStakingRates(ctx context.Context) []CurrentStaking {
	var records []CurrentStaking
	err := m.retry.do(ctx, "current_staking_rates", func() error {
		records = nil
		return m.getJSON(ctx, currentStakingPath, nil, &records)
	})
	if err != nil {
		return nil
	}
	return records
}

type rateHistoryRecord struct {
	HourBucket       string  `json:"hourBucket"`
	AvgLendingRate   float64 `json:"avgLendingRate"`
	AvgBorrowingRate float64 `json:"avgBorrowingRate"`
}

type stakingHistoryRecord struct {
	HourBucket string  `json:"hourBucket"`
	AvgAPY     float64 `json:"avgApy"`
}

// HourlyRates returns hourly lend/borrow averages for a bank, chronological.
func (m *MoneyMarkets) HourlyRates(ctx context.Context, bankAddress, protocol string, limitHours int) []RateHistoryPoint {
	query := url.Values{}
	query.Set("bank", bankAddress)
	query.Set("protocol", protocol)
	query.Set("limit", strconv.Itoa(limitHours))

	var records []rateHistoryRecord
	err := m.retry.do(ctx, "hourly_rates", func() error {
		records = nil
		return m.getJSON(ctx, hourlyRatesPath, query, &records)
	})
	if err != nil {
		return nil
	}

	out := make([]RateHistoryPoint, 0, len(records))
	for _, rec := range records {
		ts, err := time.Parse(time.RFC3339, rec.HourBucket)
		if err != nil {
			continue
		}
		out = append(out, RateHistoryPoint{
			HourBucket:       ts.UTC(),
			AvgLendingRate:   rec.AvgLendingRate,
			AvgBorrowingRate: rec.AvgBorrowingRate,
		})
	}
	return out
}

// HourlyStaking returns hourly staking averages for a mint, chronological.
func (m *MoneyMarkets) HourlyStaking(ctx context.Context, mint string, limitHours int) []StakingHistoryPoint {
	query := url.Values{}
	query.Set("mint", mint)
	query.Set("limit", strconv.Itoa(limitHours))

	var records []stakingHistoryRecord
	err := m.retry.do(ctx, "hourly_staking", func() error {
		records = nil
		return m.getJSON(ctx, hourlyStakingPath, query, &records)
	})
	if err != nil {
		return nil
	}

	out := make([]StakingHistoryPoint, 0, len(records))
	for _, rec := range records {
		ts, err := time.Parse(time.RFC3339, rec.HourBucket)
		if err != nil {
			continue
		}
		out = append(out, StakingHistoryPoint{HourBucket: ts.UTC(), AvgAPY: rec.AvgAPY})
	}
	return out
}

var (
	_ CurrentRatesSource   = (*MoneyMarkets)(nil)
	_ StakingRatesSource   = (*MoneyMarkets)(nil)
	_ RateHistorySource    = (*MoneyMarkets)(nil)
	_ StakingHistorySource = (*MoneyMarkets)(nil)
)
