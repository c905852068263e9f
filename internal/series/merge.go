package series

import (
	"math"
	"sort"
	"time"
)

// IntersectTimes returns the timestamps present in both series, sorted. Used
// for same-source hourly data where buckets match exactly.
func IntersectTimes(a, b Series) []time.Time {
	set := make(map[int64]struct{}, len(b))
	for _, p := range b {
		set[p.Time.UnixNano()] = struct{}{}
	}
	var out []time.Time
	seen := make(map[int64]struct{}, len(a))
	for _, p := range a {
		key := p.Time.UnixNano()
		if _, dup := seen[key]; dup {
			continue
		}
		if _, ok := set[key]; ok {
			out = append(out, p.Time)
			seen[key] = struct{}{}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// At returns the exact-match value for t, or NaN when absent.
func (s Series) At(t time.Time) float64 {
	for _, p := range s {
		if p.Time.Equal(t) {
			return p.Value
		}
	}
	return math.NaN()
}

// Nearest finds the value closest in time to t within tolerance, or NaN when
// nothing qualifies. This is the cross-source merge used for price feeds,
// which do not share bucket boundaries with the rate history.
func (s Series) Nearest(t time.Time, tolerance time.Duration) float64 {
	best := math.NaN()
	bestDist := tolerance + 1
	for _, p := range s {
		dist := p.Time.Sub(t)
		if dist < 0 {
			dist = -dist
		}
		if dist <= tolerance && dist < bestDist {
			best = p.Value
			bestDist = dist
		}
	}
	return best
}

// index maps timestamps to values for repeated exact lookups.
type index map[int64]float64

func (s Series) indexed() index {
	idx := make(index, len(s))
	for _, p := range s {
		idx[p.Time.UnixNano()] = p.Value
	}
	return idx
}

func (idx index) at(t time.Time) float64 {
	if v, ok := idx[t.UnixNano()]; ok {
		return v
	}
	return math.NaN()
}

// InnerJoin pairs up buckets present in both series, dropping buckets missing
// either leg.
func InnerJoin(a, b Series) (times []time.Time, aVals, bVals []float64) {
	idx := b.indexed()
	for _, p := range a {
		v, ok := idx[p.Time.UnixNano()]
		if !ok {
			continue
		}
		times = append(times, p.Time)
		aVals = append(aVals, p.Value)
		bVals = append(bVals, v)
	}
	return times, aVals, bVals
}
