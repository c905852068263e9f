package arb

import "strings"

// Direction of the spot leg. Long lends the asset and borrows USDC; Short
// lends USDC and borrows the asset.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// ParseDirection normalizes a user-supplied direction string.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "l":
		return Long, true
	case "short", "s":
		return Short, true
	}
	return "", false
}

// HourlyFeeRate computes the net spot borrowing/lending cost as a percentage
// per hour. Lend/borrow rates arrive as APY percentages, staking rates as
// decimals (0.05 == 5%). The result is negative when the position earns more
// than it pays.
//
// feeYearPct = netBorrow*(leverage-1) - netLend*leverage, divided by 8760.
func HourlyFeeRate(lendRatePct, borrowRatePct, lendStakingDec, borrowStakingDec, leverage float64) (float64, error) {
	if leverage < 1 {
		return 0, ErrInvalidLeverage
	}

	netLend := lendRatePct + lendStakingDec*100.0
	netBorrow := borrowRatePct + borrowStakingDec*100.0
	feeYearPct := netBorrow*(leverage-1.0) - netLend*leverage
	return feeYearPct / HoursPerYear, nil
}

// ScaledSpotRate projects the hourly fee rate linearly onto targetHours.
// This is the "current rate" display basis, not the compounded basis used by
// the historical series builder.
func ScaledSpotRate(lendRatePct, borrowRatePct, lendStakingDec, borrowStakingDec, leverage float64, targetHours int) (float64, error) {
	if targetHours <= 0 {
		return 0, ErrInvalidInterval
	}
	hourly, err := HourlyFeeRate(lendRatePct, borrowRatePct, lendStakingDec, borrowStakingDec, leverage)
	if err != nil {
		return 0, err
	}
	return hourly * float64(targetHours), nil
}

// FeeRateYearPct is the un-annualized-divisor variant used by the history
// builder: the raw APY% fee rate per observation row.
func FeeRateYearPct(lendRatePct, borrowRatePct, lendStakingPct, borrowStakingPct, leverage float64) float64 {
	netLend := lendRatePct + lendStakingPct
	netBorrow := borrowRatePct + borrowStakingPct
	return netBorrow*(leverage-1.0) - netLend*leverage
}
