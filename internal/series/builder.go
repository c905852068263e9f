package series

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/arb"
	"spot-perps-arb/internal/cache"
	"spot-perps-arb/internal/config"
	"spot-perps-arb/internal/marketdata"
)

// Request identifies one historical series configuration.
type Request struct {
	Asset     string
	Protocol  string
	Market    string
	Direction arb.Direction
	Leverage  float64
	// Exchange is the funding venue; PerpSymbol is the base symbol quoted
	// there (liquid-staking variants all trade under their base asset's perp).
	Exchange        string
	PerpSymbol      string
	LookbackHours   int
	TotalCapitalUSD float64
}

// Builder assembles historical spot and arbitrage series from the external
// history sources. Fetches are memoized through the bounded TTL cache so
// repeated evaluations during a search pass hit the network once.
type Builder struct {
	tokens  config.TokenConfig
	rates   marketdata.RateHistorySource
	staking marketdata.StakingHistorySource
	funding map[string]marketdata.FundingHistorySource
	policy  arb.LeveragePolicy
	memo    *cache.Cache
	logger  zerolog.Logger
}

// NewBuilder constructs a Builder. Funding sources are indexed by their
// exchange name.
func NewBuilder(
	tokens config.TokenConfig,
	rates marketdata.RateHistorySource,
	staking marketdata.StakingHistorySource,
	fundingSources []marketdata.FundingHistorySource,
	policy arb.LeveragePolicy,
	memo *cache.Cache,
	logger zerolog.Logger,
) *Builder {
	funding := make(map[string]marketdata.FundingHistorySource, len(fundingSources))
	for _, src := range fundingSources {
		funding[src.ExchangeName()] = src
	}
	return &Builder{
		tokens:  tokens,
		rates:   rates,
		staking: staking,
		funding: funding,
		policy:  policy,
		memo:    memo,
		logger:  logger.With().Str("component", "series_builder").Logger(),
	}
}

// Exchanges returns the configured funding venue names.
func (b *Builder) Exchanges() []string {
	out := make([]string, 0, len(b.funding))
	for name := range b.funding {
		out = append(out, name)
	}
	return out
}

func ratePoints(records []marketdata.RateHistoryPoint, lending bool) Series {
	out := make(Series, 0, len(records))
	for _, rec := range records {
		v := rec.AvgBorrowingRate
		if lending {
			v = rec.AvgLendingRate
		}
		out = append(out, Point{Time: rec.HourBucket, Value: v})
	}
	out.Sort()
	return out
}

func stakingPoints(records []marketdata.StakingHistoryPoint) Series {
	out := make(Series, 0, len(records))
	for _, rec := range records {
		out = append(out, Point{Time: rec.HourBucket, Value: rec.AvgAPY})
	}
	out.Sort()
	// decimal APY to percent
	return out.Scale(100.0)
}

func (b *Builder) findBanks(asset, protocol, market string) (assetBank, usdcBank string) {
	for _, pair := range b.tokens.ProtocolMarketPairs(asset) {
		if pair.Protocol == protocol && pair.Market == market {
			assetBank = pair.Bank
			break
		}
	}
	usdcBank = b.tokens.MatchingUSDCBank(protocol, market)
	return assetBank, usdcBank
}

// BuildSpotHistory builds the hourly spot fee-rate series (raw APY%) for one
// asset/protocol/market/direction/leverage selection. A leverage above the
// pair's effective cap yields a series of all NaN rather than a partial one.
// ErrDataUnavailable is returned when banks are missing or no overlapping
// history exists.
func (b *Builder) BuildSpotHistory(
	ctx context.Context,
	asset, protocol, market string,
	direction arb.Direction,
	leverage float64,
	limitHours int,
) (Series, error) {
	key := fmt.Sprintf("spot|%s|%s|%s|%s|%.2f|%d", asset, protocol, market, direction, leverage, limitHours)
	if cached, ok := b.memo.Get(key); ok {
		return cached.(Series), nil
	}

	assetBank, usdcBank := b.findBanks(asset, protocol, market)
	if assetBank == "" || usdcBank == "" {
		return nil, fmt.Errorf("%w: no %s/USDC bank pair at %s (%s)", arb.ErrDataUnavailable, asset, protocol, market)
	}

	assetRates := b.rates.HourlyRates(ctx, assetBank, protocol, limitHours)
	usdcRates := b.rates.HourlyRates(ctx, usdcBank, protocol, limitHours)

	// Staking is fetched only for flagged tokens; an unflagged token always
	// contributes a constant 0, saving one upstream call per leg.
	var assetStk, usdcStk Series
	if b.tokens.HasStakingYield(asset) {
		assetStk = stakingPoints(b.staking.HourlyStaking(ctx, b.tokens.Mint(asset), limitHours))
	}
	if b.tokens.HasStakingYield("USDC") {
		usdcStk = stakingPoints(b.staking.HourlyStaking(ctx, b.tokens.Mint("USDC"), limitHours))
	}

	assetLend := ratePoints(assetRates, true)
	assetBorrow := ratePoints(assetRates, false)
	usdcLend := ratePoints(usdcRates, true)
	usdcBorrow := ratePoints(usdcRates, false)

	times := IntersectTimes(assetLend, usdcBorrow)
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: no overlapping rate history for %s at %s (%s)", arb.ErrDataUnavailable, asset, protocol, market)
	}

	var lendIdx, borrowIdx, lendStkIdx, borrowStkIdx index
	if direction == arb.Long {
		lendIdx, borrowIdx = assetLend.indexed(), usdcBorrow.indexed()
		lendStkIdx, borrowStkIdx = assetStk.indexed(), usdcStk.indexed()
	} else {
		lendIdx, borrowIdx = usdcLend.indexed(), assetBorrow.indexed()
		lendStkIdx, borrowStkIdx = usdcStk.indexed(), assetStk.indexed()
	}

	overCap := leverage > b.policy.EffectiveMaxLeverage(b.tokens, assetBank, usdcBank, direction)

	out := make(Series, 0, len(times))
	for _, t := range times {
		value := math.NaN()
		if !overCap {
			value = arb.FeeRateYearPct(
				orZero(lendIdx.at(t)),
				orZero(borrowIdx.at(t)),
				orZero(lendStkIdx.at(t)),
				orZero(borrowStkIdx.at(t)),
				leverage,
			)
		}
		out = append(out, Point{Time: t, Value: value})
	}

	b.memo.Put(key, out)
	return out, nil
}

func orZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// fundingHistory fetches the scaled funding series (APY%) for one venue and
// symbol, memoized per (exchange, symbol, lookback).
func (b *Builder) fundingHistory(ctx context.Context, exchange, symbol string, limitHours int) (Series, error) {
	source, ok := b.funding[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: unknown funding venue %q", arb.ErrDataUnavailable, exchange)
	}

	key := fmt.Sprintf("funding|%s|%s|%d", exchange, symbol, limitHours)
	if cached, ok := b.memo.Get(key); ok {
		return cached.(Series), nil
	}

	records := source.FundingHistory(ctx, symbol, time.Duration(limitHours)*time.Hour)
	out := make(Series, 0, len(records))
	for _, rec := range records {
		// hourly decimal to yearly percent
		pct, err := arb.ScaleToTarget(rec.RateDecimal, 1, int(arb.HoursPerYear))
		if err != nil {
			continue
		}
		out = append(out, Point{Time: rec.Time, Value: pct})
	}
	out.Sort()

	b.memo.Put(key, out)
	return out, nil
}

// BuildArbHistory builds the 4h-bucketed historical arbitrage series for one
// configuration: spot fee rate, funding rate, net arb, and per-bucket earnings
// at the requested capital split. Buckets missing either leg are dropped.
func (b *Builder) BuildArbHistory(ctx context.Context, req Request) (ArbSeries, error) {
	spotHourly, err := b.BuildSpotHistory(ctx, req.Asset, req.Protocol, req.Market, req.Direction, req.Leverage, req.LookbackHours)
	if err != nil {
		return nil, err
	}

	symbol := req.PerpSymbol
	if symbol == "" {
		symbol = req.Asset
	}
	fundingHourly, err := b.fundingHistory(ctx, req.Exchange, symbol, req.LookbackHours)
	if err != nil {
		return nil, err
	}

	spot4h := ResampleCentered(spotHourly)
	funding4h := ResampleCentered(fundingHourly)
	if len(spot4h) == 0 || len(funding4h) == 0 {
		return nil, fmt.Errorf("%w: no overlapping spot/funding buckets for %s on %s", arb.ErrDataUnavailable, req.Asset, req.Exchange)
	}

	// Compounding starts at the shared window start: a leg's buckets before
	// the other leg's history begins must not seed growth.
	windowStart := spot4h[0].Time
	if funding4h[0].Time.After(windowStart) {
		windowStart = funding4h[0].Time
	}
	spot4h = TrimBefore(spot4h, windowStart)
	funding4h = TrimBefore(funding4h, windowStart)

	times, spotVals, fundVals := InnerJoin(spot4h, funding4h)
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: no overlapping spot/funding buckets for %s on %s", arb.ErrDataUnavailable, req.Asset, req.Exchange)
	}

	factor := arb.EffectiveFundingFactor(req.Direction, req.Leverage)

	spotCap := req.TotalCapitalUSD / 2.0
	perpsCap := spotCap * factor
	fundSign := 1.0
	if req.Direction == arb.Short {
		fundSign = -1.0
	}
	bucketFactor := float64(BucketHours) / hoursPerYear

	// Each leg's capital compounds through its own earn rate: the spot leg
	// through the negated fee rate, the perp leg through signed funding.
	spotValueAt := compoundedValues(spot4h, spotCap, -1.0)
	perpsValueAt := compoundedValues(funding4h, perpsCap, fundSign)

	out := make(ArbSeries, 0, len(times))
	for i, t := range times {
		spot := spotVals[i]
		funding := fundVals[i]
		netArb := arb.NetArb(spot, factor*funding, req.Direction)

		// Negative spot rate means the position earns.
		spotInterest := -spotCap * (spot / 100.0) * bucketFactor
		fundingInterest := perpsCap * fundSign * (funding / 100.0) * bucketFactor

		compounded := math.NaN()
		if !math.IsNaN(spot) && !math.IsNaN(funding) {
			compounded = (spotValueAt.at(t) - spotCap) + (perpsValueAt.at(t) - perpsCap)
		}

		out = append(out, ArbPoint{
			Time:                  t,
			SpotRatePct:           spot,
			FundingPct:            funding,
			NetArbPct:             netArb,
			SpotInterestUSD:       spotInterest,
			FundingInterestUSD:    fundingInterest,
			TotalInterestUSD:      spotInterest + fundingInterest,
			CompoundedEarningsUSD: compounded,
			SpotCapitalUSD:        spotCap,
			PerpsCapitalUSD:       perpsCap,
		})
	}
	return out, nil
}

// ROEPct is realized profit over capital for a built series, as a percentage.
func ROEPct(s ArbSeries, totalCapitalUSD float64) float64 {
	if totalCapitalUSD <= 0 || len(s) == 0 {
		return math.NaN()
	}
	return s.TotalInterestUSD() / totalCapitalUSD * 100.0
}
