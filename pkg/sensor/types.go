// Package sensor defines the shared value types for the monitoring core:
// sensor types, reading provenance, thresholds, and violation records.
package sensor

import (
	"errors"
	"fmt"
	"time"
)

// Type identifies the physical quantity a sensor measures.
// The enumeration is closed; values outside it are rejected everywhere.
type Type string

const (
	TypeTemperature   Type = "temperature"
	TypeHumidity      Type = "humidity"
	TypePressure      Type = "pressure"
	TypeAirQuality    Type = "air_quality"
	TypeCO2           Type = "co2"
	TypeNoise         Type = "noise"
	TypeWindSpeed     Type = "wind_speed"
	TypeWindDirection Type = "wind_direction"
	TypePrecipitation Type = "precipitation"
	TypeUVIndex       Type = "uv_index"
	TypeSoilMoisture  Type = "soil_moisture"
	TypePH            Type = "ph"
)

// Types lists every supported sensor type.
func Types() []Type {
	return []Type{
		TypeTemperature,
		TypeHumidity,
		TypePressure,
		TypeAirQuality,
		TypeCO2,
		TypeNoise,
		TypeWindSpeed,
		TypeWindDirection,
		TypePrecipitation,
		TypeUVIndex,
		TypeSoilMoisture,
		TypePH,
	}
}

// Valid reports whether t is part of the closed enumeration.
func (t Type) Valid() bool {
	_, ok := ranges[t]
	return ok
}

// Provenance tags where a reading came from.
type Provenance string

const (
	// ProvenanceReal marks a measurement from a physical sensor.
	ProvenanceReal Provenance = "real"
	// ProvenanceSimulated marks a synthetic reading from a fallback generator.
	ProvenanceSimulated Provenance = "simulated"
	// ProvenanceBackup marks a cached prior-good value replayed after a device failure.
	ProvenanceBackup Provenance = "backup"
)

// Valid reports whether p is a known provenance tag.
func (p Provenance) Valid() bool {
	switch p {
	case ProvenanceReal, ProvenanceSimulated, ProvenanceBackup:
		return true
	default:
		return false
	}
}

// Severity is the ordinal urgency tag on thresholds and violations.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal position of the severity, higher is more urgent.
// Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ErrUnknownSensorType is returned when a sensor type falls outside the
// closed enumeration. It is always surfaced to the caller, never defaulted.
var ErrUnknownSensorType = errors.New("unknown sensor type")

// RawReading is one measurement as submitted by the ingestion boundary.
// It is never mutated after submission.
type RawReading struct {
	SensorID   string
	StationID  string
	SensorType Type
	Value      float64
	Timestamp  time.Time
	Provenance Provenance
	// Uptime is how long the sensor has been powered when the reading
	// was taken. Readings inside the warm-up window score lower.
	Uptime time.Duration
}

// ScoredReading is a RawReading with the quality verdict attached.
// Created exactly once per raw reading and immutable thereafter.
type ScoredReading struct {
	RawReading
	Quality float64
	Unit    string
	Valid   bool
}

// Violation records one breached threshold bound for one reading.
// It is ephemeral output; the alert collaborator owns persistence.
type Violation struct {
	SensorType     Type
	Severity       Severity
	ActualValue    float64
	ThresholdValue float64
	Message        string
	Timestamp      time.Time
}

// Threshold is an admin-configured bound for one sensor type and severity.
// Consumed read-only; nil Min/Max means the bound is not set.
type Threshold struct {
	SensorType  Type
	Severity    Severity
	MinValue    *float64
	MaxValue    *float64
	Active      bool
	Description string
}

// ErrInvalidThreshold marks a threshold that fails validation.
var ErrInvalidThreshold = errors.New("invalid threshold")

// Validate checks the threshold invariants.
func (t Threshold) Validate() error {
	if !t.SensorType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSensorType, t.SensorType)
	}
	if !t.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidThreshold, t.Severity)
	}
	if t.MinValue == nil && t.MaxValue == nil {
		return fmt.Errorf("%w: at least one bound must be set", ErrInvalidThreshold)
	}
	if t.MinValue != nil && t.MaxValue != nil && *t.MinValue >= *t.MaxValue {
		return fmt.Errorf("%w: min value must be below max value", ErrInvalidThreshold)
	}
	return nil
}
