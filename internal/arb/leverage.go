package arb

import "spot-perps-arb/internal/config"

// LeveragePolicy computes the largest leverage a bank pair supports for a
// direction. It is pluggable because the derivation depends on external
// protocol risk configuration, not on anything this package owns.
type LeveragePolicy interface {
	EffectiveMaxLeverage(tokens config.TokenConfig, assetBank, usdcBank string, direction Direction) float64
}

// CapLeveragePolicy is the default policy: the minimum of the per-direction
// caps configured on the two legs, floored at 1.0. Missing caps default to
// 1.0.
type CapLeveragePolicy struct{}

// EffectiveMaxLeverage implements LeveragePolicy.
func (CapLeveragePolicy) EffectiveMaxLeverage(tokens config.TokenConfig, assetBank, usdcBank string, direction Direction) float64 {
	const defaultCap = 1.0

	var caps []float64
	for _, address := range []string{assetBank, usdcBank} {
		record, ok := tokens.BankByAddress(address)
		if !ok {
			continue
		}
		capValue, ok := record.MaxLeverage[string(direction)]
		if !ok {
			continue
		}
		caps = append(caps, capValue)
	}

	if len(caps) == 0 {
		return defaultCap
	}
	minCap := caps[0]
	for _, c := range caps[1:] {
		if c < minCap {
			minCap = c
		}
	}
	if minCap < defaultCap {
		return defaultCap
	}
	return minCap
}

var _ LeveragePolicy = CapLeveragePolicy{}
