package arb

// HoursPerYear is the annualization basis used throughout: a flat 365-day
// year. Kept exact for parity with upstream rate sources.
const HoursPerYear = 365.0 * 24.0

// ScaleToTarget converts a decimal rate quoted over originalHours into a
// percentage over targetHours: rate * (target/original) * 100. A 1-hour
// funding rate and an 8-hour funding rate become comparable at any common
// basis this way.
func ScaleToTarget(rate float64, originalHours, targetHours int) (float64, error) {
	if originalHours <= 0 || targetHours <= 0 {
		return 0, ErrInvalidInterval
	}
	return rate * (float64(targetHours) / float64(originalHours)) * 100.0, nil
}
