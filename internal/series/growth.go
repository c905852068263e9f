package series

import "math"

const hoursPerYear = 365.0 * 24.0

// GrowthFactors converts per-bucket APY percentages into per-bucket growth
// factors: 1 + (pct/100) * (bucketHours/8760). NaN rates are treated as 0
// growth, matching how missing staking legs default.
func GrowthFactors(ratesPct []float64, bucketHours float64) []float64 {
	bucketFactor := bucketHours / hoursPerYear
	out := make([]float64, len(ratesPct))
	for i, pct := range ratesPct {
		if math.IsNaN(pct) {
			pct = 0
		}
		out[i] = 1.0 + (pct/100.0)*bucketFactor
	}
	return out
}

// ShiftedCumulative is the cumulative product of growth factors shifted one
// bucket forward: a rate observed in bucket N compounds starting in bucket
// N+1, never in bucket N itself. Bucket 0 is therefore exactly 1.0. Getting
// this wrong overstates returns by one bucket of compounding.
func ShiftedCumulative(factors []float64) []float64 {
	out := make([]float64, len(factors))
	cum := 1.0
	for i := range factors {
		out[i] = cum
		cum *= factors[i]
	}
	return out
}

// CompoundTokens evolves an initial token count through the shifted
// cumulative growth of the rate series.
func CompoundTokens(initial float64, ratesPct []float64, bucketHours float64) []float64 {
	shifted := ShiftedCumulative(GrowthFactors(ratesPct, bucketHours))
	out := make([]float64, len(shifted))
	for i, g := range shifted {
		out[i] = initial * g
	}
	return out
}

// compoundedValues maps each bucket time to the leg's compounded capital,
// growing through sign*rate shifted one bucket forward.
func compoundedValues(s Series, capitalUSD, sign float64) index {
	rates := make([]float64, len(s))
	for i, p := range s {
		rates[i] = sign * p.Value
	}
	values := CompoundTokens(capitalUSD, rates, BucketHours)
	idx := make(index, len(s))
	for i, p := range s {
		idx[p.Time.UnixNano()] = values[i]
	}
	return idx
}
