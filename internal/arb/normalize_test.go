package arb

import (
	"errors"
	"math"
	"testing"
)

func TestScaleToTarget(t *testing.T) {
	cases := []struct {
		name     string
		rate     float64
		original int
		target   int
		expect   float64
	}{
		{name: "hourly to hourly", rate: 0.0001, original: 1, target: 1, expect: 0.01},
		{name: "8h to 1h", rate: 0.0008, original: 8, target: 1, expect: 0.01},
		{name: "1h to year", rate: 0.0001, original: 1, target: 8760, expect: 87.6},
		{name: "negative rate", rate: -0.0002, original: 1, target: 1, expect: -0.02},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ScaleToTarget(tc.rate, tc.original, tc.target)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tc.expect) > 1e-9 {
				t.Fatalf("got %v want %v", got, tc.expect)
			}
		})
	}
}

func TestScaleToTargetInvalidInterval(t *testing.T) {
	if _, err := ScaleToTarget(0.1, 0, 1); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if _, err := ScaleToTarget(0.1, 1, -8); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestScaleToTargetLinearity(t *testing.T) {
	// Scaling to 8h must be exactly 8x the 1h scaling.
	oneHour, err := ScaleToTarget(0.0003, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	eightHour, err := ScaleToTarget(0.0003, 1, 8)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(eightHour-8*oneHour) > 1e-12 {
		t.Fatalf("linearity broken: 1h=%v 8h=%v", oneHour, eightHour)
	}
}
