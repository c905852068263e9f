// Package marketdata holds the HTTP clients for every external data source
// and the interfaces the calculation layer consumes. Transport failures are
// absorbed here: after retry exhaustion a client returns an empty value, so
// calculation code only ever sees "data" or "no data".
package marketdata

import (
	"context"
	"time"
)

// CurrentRate is one bank's current APY quotes.
type CurrentRate struct {
	Address       string  `json:"address"`
	LendingRate   float64 `json:"lendingRate"`
	BorrowingRate float64 `json:"borrowingRate"`
}

// CurrentStaking is one mint's current staking APY in decimal form.
type CurrentStaking struct {
	Address string  `json:"address"`
	APY     float64 `json:"apy"`
}

// RateHistoryPoint is one hourly bucket of lend/borrow history.
type RateHistoryPoint struct {
	HourBucket       time.Time
	AvgLendingRate   float64
	AvgBorrowingRate float64
}

// StakingHistoryPoint is one hourly bucket of staking history (decimal APY).
type StakingHistoryPoint struct {
	HourBucket time.Time
	AvgAPY     float64
}

// PredictedFunding is a venue's current hourly funding quote.
type PredictedFunding struct {
	Symbol        string
	Exchange      string
	RateDecimal   float64
	IntervalHours int
}

// FundingHistoryPoint is one historical funding observation (decimal rate).
type FundingHistoryPoint struct {
	Time        time.Time
	RateDecimal float64
}

// PricePoint is one bucket of a token price series.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// CurrentRatesSource provides the current lend/borrow quotes for all banks.
type CurrentRatesSource interface {
	CurrentRates(ctx context.Context) []CurrentRate
}

// StakingRatesSource provides current staking APYs by mint.
type StakingRatesSource interface {
	CurrentStakingRates(ctx context.Context) []CurrentStaking
}

// RateHistorySource provides hourly lend/borrow history for a bank.
type RateHistorySource interface {
	HourlyRates(ctx context.Context, bankAddress, protocol string, limitHours int) []RateHistoryPoint
}

// StakingHistorySource provides hourly staking history for a mint.
type StakingHistorySource interface {
	HourlyStaking(ctx context.Context, mint string, limitHours int) []StakingHistoryPoint
}

// FundingSource provides current predicted funding quotes by symbol.
type FundingSource interface {
	PredictedFundings(ctx context.Context) []PredictedFunding
}

// FundingHistorySource provides historical funding for one symbol over a
// lookback window.
type FundingHistorySource interface {
	FundingHistory(ctx context.Context, symbol string, lookback time.Duration) []FundingHistoryPoint
	ExchangeName() string
}

// PriceHistorySource provides bucketed token price history.
type PriceHistorySource interface {
	PriceHistory(ctx context.Context, mint string, from, to time.Time, bucket string) []PricePoint
}
