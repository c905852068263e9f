package arb

import (
	"fmt"
	"strings"

	"spot-perps-arb/internal/config"
)

// RateQuote is one market's current APY quotes, keyed by bank address.
type RateQuote struct {
	Address        string
	LendingRatePct float64
	BorrowRatePct  float64
}

// StakingQuote is a current staking APY in decimal form, keyed by mint.
type StakingQuote struct {
	Mint       string
	APYDecimal float64
}

// QuoteBook indexes current rate and staking snapshots for lookup during a
// calculation pass. Snapshots are immutable once built.
type QuoteBook struct {
	rates   map[string]RateQuote
	staking map[string]float64
}

// NewQuoteBook indexes the fetched snapshots.
func NewQuoteBook(rates []RateQuote, staking []StakingQuote) *QuoteBook {
	book := &QuoteBook{
		rates:   make(map[string]RateQuote, len(rates)),
		staking: make(map[string]float64, len(staking)),
	}
	for _, r := range rates {
		book.rates[r.Address] = r
	}
	for _, s := range staking {
		book.staking[s.Mint] = s.APYDecimal
	}
	return book
}

// Rate looks up the current quotes for a bank address.
func (b *QuoteBook) Rate(bankAddress string) (RateQuote, bool) {
	q, ok := b.rates[bankAddress]
	return q, ok
}

// StakingRate looks up the decimal staking APY for a mint, 0 when absent.
func (b *QuoteBook) StakingRate(mint string) float64 {
	return b.staking[mint]
}

// Empty reports whether the book holds no rate quotes at all.
func (b *QuoteBook) Empty() bool {
	return len(b.rates) == 0
}

// DiagFunc receives human-readable skip reasons during a calculation pass.
type DiagFunc func(msg string)

// VenueRate is a scaled spot rate at one protocol/market.
type VenueRate struct {
	Protocol string
	Market   string
	RatePct  float64
	Leverage float64
}

// VenueKey renders the protocol(market) label used in tables.
func (v VenueRate) VenueKey() string {
	return fmt.Sprintf("%s(%s)", v.Protocol, v.Market)
}

// SpotRatesForAsset computes the scaled spot rate for every protocol/market
// pair of the asset that has a matching USDC bank. Pairs with missing legs or
// leverage above the effective cap are skipped entirely, never defaulted to
// zero; skips are reported to diag when provided.
func SpotRatesForAsset(
	tokens config.TokenConfig,
	book *QuoteBook,
	asset string,
	leverage float64,
	direction Direction,
	targetHours int,
	policy LeveragePolicy,
	diag DiagFunc,
) []VenueRate {
	var out []VenueRate

	assetStaking := book.StakingRate(tokens.Mint(asset))
	usdcStaking := book.StakingRate(tokens.Mint("USDC"))

	for _, pair := range tokens.ProtocolMarketPairs(asset) {
		usdcBank := tokens.MatchingUSDCBank(pair.Protocol, pair.Market)
		if usdcBank == "" {
			continue
		}
		venue := VenueRate{Protocol: pair.Protocol, Market: pair.Market, Leverage: leverage}

		var lendBank, borrowBank string
		var lendStaking, borrowStaking float64
		if direction == Long {
			lendBank, borrowBank = pair.Bank, usdcBank
			lendStaking, borrowStaking = assetStaking, usdcStaking
		} else {
			lendBank, borrowBank = usdcBank, pair.Bank
			lendStaking, borrowStaking = usdcStaking, assetStaking
		}

		lendQuote, lendOK := book.Rate(lendBank)
		borrowQuote, borrowOK := book.Rate(borrowBank)
		if !lendOK || !borrowOK {
			if diag != nil {
				var missing []string
				if !lendOK {
					missing = append(missing, "lending")
				}
				if !borrowOK {
					missing = append(missing, "borrowing")
				}
				diag(fmt.Sprintf("skipping %s %s at %s: missing %s data",
					asset, strings.ToUpper(string(direction)), venue.VenueKey(), strings.Join(missing, "/")))
			}
			continue
		}

		effMax := policy.EffectiveMaxLeverage(tokens, pair.Bank, usdcBank, direction)
		if leverage > effMax {
			if diag != nil {
				diag(fmt.Sprintf("skipping %s %s at %s: leverage %.1fx exceeds cap %.1fx",
					asset, strings.ToUpper(string(direction)), venue.VenueKey(), leverage, effMax))
			}
			continue
		}

		rate, err := ScaledSpotRate(lendQuote.LendingRatePct, borrowQuote.BorrowRatePct, lendStaking, borrowStaking, leverage, targetHours)
		if err != nil {
			continue
		}

		venue.RatePct = rate
		out = append(out, venue)
	}

	return out
}
