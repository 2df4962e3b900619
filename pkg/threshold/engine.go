// Package threshold evaluates scored readings against configured bounds.
package threshold

import (
	"fmt"

	"envmon.dev/envmon/pkg/sensor"
)

// Evaluate checks a scored reading against a snapshot of thresholds and
// returns one violation per breached bound.
//
// Inactive thresholds and thresholds for other sensor types are skipped.
// A reading breaching several thresholds produces several violations; the
// engine does not deduplicate or pick the most severe, prioritization
// belongs to the alert consumer. An empty result is a normal outcome.
func Evaluate(reading sensor.ScoredReading, thresholds []sensor.Threshold) ([]sensor.Violation, error) {
	if !reading.SensorType.Valid() {
		return nil, fmt.Errorf("%w: %q", sensor.ErrUnknownSensorType, reading.SensorType)
	}

	var violations []sensor.Violation
	for _, t := range thresholds {
		if !t.Active || t.SensorType != reading.SensorType {
			continue
		}
		if t.MinValue != nil && reading.Value < *t.MinValue {
			violations = append(violations, newViolation(reading, t, *t.MinValue, "below"))
		}
		if t.MaxValue != nil && reading.Value > *t.MaxValue {
			violations = append(violations, newViolation(reading, t, *t.MaxValue, "above"))
		}
	}
	return violations, nil
}

func newViolation(reading sensor.ScoredReading, t sensor.Threshold, bound float64, direction string) sensor.Violation {
	msg := fmt.Sprintf("%s reading %.2f %s is %s the %s %s bound of %.2f %s",
		reading.SensorType, reading.Value, reading.Unit,
		direction, t.Severity, boundName(direction), bound, reading.Unit)
	return sensor.Violation{
		SensorType:     reading.SensorType,
		Severity:       t.Severity,
		ActualValue:    reading.Value,
		ThresholdValue: bound,
		Message:        msg,
		Timestamp:      reading.Timestamp,
	}
}

func boundName(direction string) string {
	if direction == "below" {
		return "minimum"
	}
	return "maximum"
}
