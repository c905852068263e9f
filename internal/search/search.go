// Package search implements the exhaustive best-configuration grid search
// over asset variants, protocol/market pairs, leverage steps, and funding
// venues. The enumeration is deliberately unpruned: the candidate space is
// small and a fixed visit order is what makes results reproducible.
package search

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/arb"
	"spot-perps-arb/internal/config"
	"spot-perps-arb/internal/series"
)

// leverageStep is the ladder increment: 1.0, 1.5, 2.0, ...
const leverageStep = 0.5

// Options parameterise one search run.
type Options struct {
	// Variants are evaluated in slice order; the first candidate to reach the
	// best ROE wins ties.
	Variants []string
	// PerpSymbol is the base symbol all variants trade under on the funding
	// venues (liquid-staking wrappers share their base asset's perp market).
	PerpSymbol       string
	Direction        arb.Direction
	MaxLeverage      float64
	ShortMinLeverage float64
	LookbackHours    int
	TotalCapitalUSD  float64
	// Exchanges are funding venues in evaluation order.
	Exchanges []string
}

// BestConfig is the winning configuration of a search run.
type BestConfig struct {
	Asset     string
	Protocol  string
	Market    string
	Direction arb.Direction
	Leverage  float64
	Exchange  string
	ROEPct    float64
	Series    series.ArbSeries
}

// Finder runs grid searches against a series builder.
type Finder struct {
	tokens  config.TokenConfig
	builder *series.Builder
	policy  arb.LeveragePolicy
	logger  zerolog.Logger
}

// NewFinder constructs a Finder.
func NewFinder(tokens config.TokenConfig, builder *series.Builder, policy arb.LeveragePolicy, logger zerolog.Logger) *Finder {
	return &Finder{
		tokens:  tokens,
		builder: builder,
		policy:  policy,
		logger:  logger.With().Str("component", "search").Logger(),
	}
}

// pairKey deduplicates protocol/market combinations while keeping config
// order.
type pairKey struct {
	protocol string
	market   string
}

func (f *Finder) protocolMarketPairs(asset string) []pairKey {
	seen := make(map[pairKey]struct{})
	var out []pairKey
	for _, bank := range f.tokens.ProtocolMarketPairs(asset) {
		key := pairKey{protocol: bank.Protocol, market: bank.Market}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func leverageLadder(max float64) []float64 {
	var out []float64
	for lev := 1.0; lev <= max+1e-9; lev += leverageStep {
		out = append(out, lev)
	}
	return out
}

// FindBestConfig enumerates every candidate configuration, builds its
// historical series, and returns the one with the highest strictly positive
// realized ROE. Candidates with missing USDC banks, over-cap leverage, or
// (for shorts) leverage below the delta-neutrality minimum are skipped.
// Returns ErrDataUnavailable when no candidate could be evaluated at all, and
// ErrNoOpportunity when candidates were evaluated but none was profitable.
func (f *Finder) FindBestConfig(ctx context.Context, opts Options) (*BestConfig, error) {
	if opts.Direction == arb.Short && opts.ShortMinLeverage < 2.0 {
		opts.ShortMinLeverage = 2.0
	}
	ladder := leverageLadder(opts.MaxLeverage)

	var best *BestConfig
	evaluated := 0

	for _, asset := range opts.Variants {
		for _, pair := range f.protocolMarketPairs(asset) {
			usdcBank := f.tokens.MatchingUSDCBank(pair.protocol, pair.market)
			if usdcBank == "" {
				continue
			}
			assetBank := ""
			for _, bank := range f.tokens.ProtocolMarketPairs(asset) {
				if bank.Protocol == pair.protocol && bank.Market == pair.market {
					assetBank = bank.Bank
					break
				}
			}
			effMax := f.policy.EffectiveMaxLeverage(f.tokens, assetBank, usdcBank, opts.Direction)

			for _, leverage := range ladder {
				if opts.Direction == arb.Short && leverage < opts.ShortMinLeverage {
					continue
				}
				if leverage > effMax {
					continue
				}

				for _, exchange := range opts.Exchanges {
					if err := ctx.Err(); err != nil {
						return nil, err
					}

					built, err := f.builder.BuildArbHistory(ctx, series.Request{
						Asset:           asset,
						Protocol:        pair.protocol,
						Market:          pair.market,
						Direction:       opts.Direction,
						Leverage:        leverage,
						Exchange:        exchange,
						PerpSymbol:      opts.PerpSymbol,
						LookbackHours:   opts.LookbackHours,
						TotalCapitalUSD: opts.TotalCapitalUSD,
					})
					if err != nil {
						if errors.Is(err, arb.ErrDataUnavailable) {
							f.logger.Debug().
								Str("asset", asset).
								Str("protocol", pair.protocol).
								Str("exchange", exchange).
								Float64("leverage", leverage).
								Msg("candidate skipped, data unavailable")
							continue
						}
						return nil, err
					}
					if built.AllNaN() {
						continue
					}

					evaluated++
					roe := series.ROEPct(built, opts.TotalCapitalUSD)
					if math.IsNaN(roe) || roe <= 0 {
						continue
					}
					// Strict > keeps the first-found candidate on ties.
					if best == nil || roe > best.ROEPct {
						best = &BestConfig{
							Asset:     asset,
							Protocol:  pair.protocol,
							Market:    pair.market,
							Direction: opts.Direction,
							Leverage:  leverage,
							Exchange:  exchange,
							ROEPct:    roe,
							Series:    built,
						}
					}
				}
			}
		}
	}

	if evaluated == 0 {
		return nil, arb.ErrDataUnavailable
	}
	if best == nil {
		return nil, arb.ErrNoOpportunity
	}
	return best, nil
}
