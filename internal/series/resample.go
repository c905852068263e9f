package series

import (
	"math"
	"sort"
	"time"
)

// BucketHours is the aggregation width for historical display series.
const BucketHours = 4

// bucketWidth and the +2h label shift center each plotted point on its
// bucket's midpoint.
var (
	bucketWidth = time.Duration(BucketHours) * time.Hour
	centerShift = bucketWidth / 2
)

// ResampleCentered aggregates hourly points into 4-hour buckets by averaging,
// then shifts each bucket label by +2h so the point represents the bucket
// midpoint. NaN inputs are excluded from the average; a bucket whose inputs
// are all NaN stays NaN.
func ResampleCentered(s Series) Series {
	if len(s) == 0 {
		return nil
	}

	type acc struct {
		sum   float64
		n     int
		total int
	}
	buckets := make(map[int64]*acc)
	for _, p := range s {
		floor := p.Time.Truncate(bucketWidth)
		key := floor.UnixNano()
		a, ok := buckets[key]
		if !ok {
			a = &acc{}
			buckets[key] = a
		}
		a.total++
		if !math.IsNaN(p.Value) {
			a.sum += p.Value
			a.n++
		}
	}

	out := make(Series, 0, len(buckets))
	for key, a := range buckets {
		value := math.NaN()
		if a.n > 0 {
			value = a.sum / float64(a.n)
		}
		out = append(out, Point{
			Time:  time.Unix(0, key).UTC().Add(centerShift),
			Value: value,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// TrimBefore drops points earlier than cutoff. Applied before growth
// computation so compounding starts at the selected window start.
func TrimBefore(s Series, cutoff time.Time) Series {
	out := make(Series, 0, len(s))
	for _, p := range s {
		if !p.Time.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}
