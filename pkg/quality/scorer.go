// Package quality turns raw sensor measurements into scored readings.
//
// The score is a confidence value in [0,1]. Deductions are additive and
// applied in a fixed order so that identical inputs always produce the
// same score.
package quality

import (
	"math"
	"time"

	"envmon.dev/envmon/pkg/sensor"
)

const (
	baselineScore = 1.0

	// Deduction for readings that are not from a physical sensor.
	provenancePenalty = 0.3

	// Deductions for values outside the type's physical ranges.
	absoluteRangePenalty = 0.5
	unusualBandPenalty   = 0.2

	// Deductions for suspicious deltas against the previous reading.
	largeJumpPenalty    = 0.3
	moderateJumpPenalty = 0.1

	// Deduction for sensors still inside the warm-up window.
	warmUpPenalty = 0.3

	// WarmUpWindow is the uptime below which a sensor is considered
	// cold-starting and its readings unstable.
	WarmUpWindow = 5 * time.Second
)

// Score evaluates one raw reading against its sensor type's physical range
// and the sensor's recent history, and returns the scored reading.
//
// recent holds the last scored readings for the same sensor, most recent
// first; only the most recent entry is used for jump detection. Passing an
// empty slice skips jump detection entirely.
func Score(raw sensor.RawReading, recent []sensor.ScoredReading) (sensor.ScoredReading, error) {
	r, err := sensor.RangeFor(raw.SensorType)
	if err != nil {
		return sensor.ScoredReading{}, err
	}

	scored := sensor.ScoredReading{
		RawReading: raw,
		Unit:       r.Unit,
	}

	// Non-numeric values are rejected outright; no deductions apply.
	if math.IsNaN(raw.Value) || math.IsInf(raw.Value, 0) {
		scored.Quality = 0
		scored.Valid = false
		return scored, nil
	}

	score := baselineScore
	scored.Valid = true

	if raw.Provenance != sensor.ProvenanceReal {
		score -= provenancePenalty
	}

	switch {
	case raw.Value < r.AbsMin || raw.Value > r.AbsMax:
		score -= absoluteRangePenalty
		scored.Valid = false
	case raw.Value < r.UnusualMin || raw.Value > r.UnusualMax:
		score -= unusualBandPenalty
	}

	if len(recent) > 0 {
		delta := math.Abs(raw.Value - recent[0].Value)
		switch {
		case delta > r.LargeJump:
			score -= largeJumpPenalty
		case delta > r.ModerateJump:
			score -= moderateJumpPenalty
		}
	}

	if raw.Uptime < WarmUpWindow {
		score -= warmUpPenalty
	}

	scored.Quality = clamp(score)
	return scored, nil
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
