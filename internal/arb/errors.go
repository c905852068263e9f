package arb

import "errors"

var (
	// ErrInvalidInterval indicates a non-positive scaling interval.
	ErrInvalidInterval = errors.New("arb: interval hours must be positive")
	// ErrInvalidLeverage indicates leverage below the 1x minimum.
	ErrInvalidLeverage = errors.New("arb: leverage must be at least 1")
	// ErrDataUnavailable means the inputs needed for a calculation could not
	// be fetched. Distinct from ErrNoOpportunity so callers can tell "the API
	// was down" from "markets agree".
	ErrDataUnavailable = errors.New("arb: market data unavailable")
	// ErrNoOpportunity means every evaluated candidate was unprofitable.
	ErrNoOpportunity = errors.New("arb: no profitable opportunity")
)
