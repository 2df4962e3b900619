// Package aggregate computes time-bucketed statistics over scored readings.
package aggregate

import (
	"errors"
	"sort"
	"time"

	"envmon.dev/envmon/pkg/sensor"
)

// Window is the closed time interval an aggregation query covers.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Bucket holds the statistics for one fixed-width interval of the window.
type Bucket struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Count   int       `json:"count"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Average float64   `json:"average"`
}

// Summary holds statistics computed over a whole set of readings.
type Summary struct {
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// Result is the outcome of one aggregation query. Buckets are sorted by
// start time and intervals without readings are omitted; downstream
// charting has to handle the gaps.
type Result struct {
	Overall Summary  `json:"overall"`
	Buckets []Bucket `json:"buckets"`
}

var (
	// ErrInvalidBucketWidth is returned for non-positive bucket widths.
	ErrInvalidBucketWidth = errors.New("bucket width must be positive")
	// ErrInvalidWindow is returned when the window end does not follow its start.
	ErrInvalidWindow = errors.New("window end must be after start")
)

// Aggregate partitions readings into fixed-width buckets measured from the
// window start and computes count, min, max, and mean per bucket plus an
// overall summary across all readings.
//
// A reading lands in bucket floor((timestamp - start) / width). A reading
// exactly at the window end belongs to the final bucket. Readings outside
// the window are ignored; callers normally pass an already-filtered slice.
// The overall summary is computed over the readings themselves, not over
// per-bucket means. The computation is pure: calling it twice over the
// same input yields the same result.
func Aggregate(readings []sensor.ScoredReading, window Window, width time.Duration) (Result, error) {
	if width <= 0 {
		return Result{}, ErrInvalidBucketWidth
	}
	if !window.End.After(window.Start) {
		return Result{}, ErrInvalidWindow
	}

	span := window.End.Sub(window.Start)
	lastIdx := int((span - 1) / width) // index of the bucket covering the window end

	byIdx := make(map[int]*Bucket)
	var overall Summary

	for _, r := range readings {
		if r.Timestamp.Before(window.Start) || r.Timestamp.After(window.End) {
			continue
		}

		idx := int(r.Timestamp.Sub(window.Start) / width)
		if idx > lastIdx {
			// The window end itself falls on a bucket boundary; fold it
			// into the final bucket instead of opening a new one.
			idx = lastIdx
		}

		b, ok := byIdx[idx]
		if !ok {
			start := window.Start.Add(time.Duration(idx) * width)
			b = &Bucket{
				Start: start,
				End:   start.Add(width),
				Min:   r.Value,
				Max:   r.Value,
			}
			byIdx[idx] = b
		}

		b.Count++
		b.Average += r.Value // running sum until the final pass
		if r.Value < b.Min {
			b.Min = r.Value
		}
		if r.Value > b.Max {
			b.Max = r.Value
		}

		if overall.Count == 0 {
			overall.Min = r.Value
			overall.Max = r.Value
		} else {
			if r.Value < overall.Min {
				overall.Min = r.Value
			}
			if r.Value > overall.Max {
				overall.Max = r.Value
			}
		}
		overall.Count++
		overall.Average += r.Value
	}

	if overall.Count > 0 {
		overall.Average /= float64(overall.Count)
	}

	buckets := make([]Bucket, 0, len(byIdx))
	for _, b := range byIdx {
		b.Average /= float64(b.Count)
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})

	return Result{Overall: overall, Buckets: buckets}, nil
}
