package arb

import "math"

// NetArb combines a scaled spot rate and a scaled funding rate into the
// signed net arbitrage figure. Negative means profitable; this convention is
// inverted from naive intuition and holds everywhere in the calculation
// layer. Presentation goes through Profitability instead of re-negating.
func NetArb(spotRate, fundingRate float64, direction Direction) float64 {
	if direction == Long {
		return spotRate - fundingRate
	}
	return spotRate + fundingRate
}

// EffectiveFundingFactor scales a funding rate for the leverage-implied perp
// notional: a long spot position shorts leverage x capital on the perp, a
// short spot position longs max(leverage-1, 0) since one unit is self-funded.
func EffectiveFundingFactor(direction Direction, leverage float64) float64 {
	if direction == Long {
		return leverage
	}
	return math.Max(leverage-1.0, 0.0)
}

// Profitability is computed once from a net-arb value and carried through to
// presentation, so display layers never flip signs themselves.
type Profitability struct {
	Profitable bool
	// AnnualizedPct is the magnitude of the opportunity as a positive yearly
	// percentage (0 when unprofitable).
	AnnualizedPct float64
}

// Assess derives Profitability from a net-arb value quoted at targetHours.
func Assess(netArb float64, targetHours int) Profitability {
	if netArb >= 0 || math.IsNaN(netArb) {
		return Profitability{}
	}
	return Profitability{
		Profitable:    true,
		AnnualizedPct: math.Abs(netArb) * HoursPerYear / float64(targetHours),
	}
}

// Opportunity is one evaluated spot-vs-perps pairing.
type Opportunity struct {
	Direction     Direction
	SpotRate      float64
	FundingRate   float64
	NetArb        float64
	Exchange      string
	Profitability Profitability
}

// FundingQuoteSet holds scaled funding rates keyed by exchange, with a fixed
// iteration order so selection is reproducible.
type FundingQuoteSet struct {
	exchanges []string
	rates     map[string]float64
}

// NewFundingQuoteSet builds a set preserving insertion order.
func NewFundingQuoteSet() *FundingQuoteSet {
	return &FundingQuoteSet{rates: make(map[string]float64)}
}

// Put adds or replaces an exchange's scaled funding rate.
func (s *FundingQuoteSet) Put(exchange string, rate float64) {
	if _, ok := s.rates[exchange]; !ok {
		s.exchanges = append(s.exchanges, exchange)
	}
	s.rates[exchange] = rate
}

// Get returns the rate for an exchange.
func (s *FundingQuoteSet) Get(exchange string) (float64, bool) {
	r, ok := s.rates[exchange]
	return r, ok
}

// Exchanges returns the exchanges in insertion order.
func (s *FundingQuoteSet) Exchanges() []string {
	return s.exchanges
}

// Len reports the number of quotes.
func (s *FundingQuoteSet) Len() int {
	return len(s.rates)
}

// BestOpportunity picks the most negative net arb across the candidate
// funding rates. Returns nil when no quote exists or the minimum is >= 0
// ("no opportunity"), never a capped or defaulted value.
func BestOpportunity(spotRate float64, quotes *FundingQuoteSet, direction Direction, targetHours int) *Opportunity {
	if quotes == nil || quotes.Len() == 0 {
		return nil
	}

	var best *Opportunity
	for _, exchange := range quotes.exchanges {
		funding := quotes.rates[exchange]
		net := NetArb(spotRate, funding, direction)
		if best == nil || net < best.NetArb {
			best = &Opportunity{
				Direction:   direction,
				SpotRate:    spotRate,
				FundingRate: funding,
				NetArb:      net,
				Exchange:    exchange,
			}
		}
	}
	if best == nil || best.NetArb >= 0 {
		return nil
	}
	best.Profitability = Assess(best.NetArb, targetHours)
	return best
}

// PerpsPair is a funding-rate differential between two venues.
type PerpsPair struct {
	LongExchange  string
	ShortExchange string
	NetArb        float64
	Profitability Profitability
}

// PerpsVsPerps evaluates all unordered exchange pairs and returns the best
// (most negative) rate differential, or nil when fewer than two quotes exist
// or the minimum is >= 0.
func PerpsVsPerps(quotes *FundingQuoteSet, targetHours int) *PerpsPair {
	if quotes == nil || quotes.Len() < 2 {
		return nil
	}

	var best *PerpsPair
	for i := 0; i < len(quotes.exchanges); i++ {
		for j := i + 1; j < len(quotes.exchanges); j++ {
			a, b := quotes.exchanges[i], quotes.exchanges[j]
			// Long leg pays less funding than the short leg earns; evaluate
			// both orientations of the pair.
			diff := quotes.rates[a] - quotes.rates[b]
			long, short := a, b
			if diff > 0 {
				diff, long, short = -diff, b, a
			}
			if best == nil || diff < best.NetArb {
				best = &PerpsPair{LongExchange: long, ShortExchange: short, NetArb: diff}
			}
		}
	}
	if best == nil || best.NetArb >= 0 {
		return nil
	}
	best.Profitability = Assess(best.NetArb, targetHours)
	return best
}
