package series

import (
	"math"
	"testing"
)

func TestGrowthFactors(t *testing.T) {
	got := GrowthFactors([]float64{8760.0, math.NaN(), 0}, 1.0)
	// 8760% APY over one hour is exactly +1% growth.
	if math.Abs(got[0]-1.01) > 1e-12 {
		t.Fatalf("factor = %v, want 1.01", got[0])
	}
	if got[1] != 1.0 {
		t.Fatalf("NaN rate must be flat growth, got %v", got[1])
	}
	if got[2] != 1.0 {
		t.Fatalf("zero rate must be flat growth, got %v", got[2])
	}
}

func TestShiftedCumulativeNoLookahead(t *testing.T) {
	out := ShiftedCumulative([]float64{1.1, 1.2, 1.3})
	// A rate observed in bucket N starts compounding in bucket N+1.
	if out[0] != 1.0 {
		t.Fatalf("bucket 0 = %v, want exactly 1.0", out[0])
	}
	if math.Abs(out[1]-1.1) > 1e-12 {
		t.Fatalf("bucket 1 = %v, want 1.1", out[1])
	}
	if math.Abs(out[2]-1.32) > 1e-12 {
		t.Fatalf("bucket 2 = %v, want 1.32", out[2])
	}
}

func TestCompoundTokens(t *testing.T) {
	out := CompoundTokens(100, []float64{8760.0, 8760.0}, 1.0)
	if out[0] != 100 {
		t.Fatalf("initial bucket = %v, want 100", out[0])
	}
	if math.Abs(out[1]-101.0) > 1e-9 {
		t.Fatalf("second bucket = %v, want 101", out[1])
	}
}
