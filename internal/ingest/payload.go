// Package ingest accepts raw readings from the outside world. Stations
// publish JSON over MQTT or RabbitMQ; every source parses into the same
// payload and feeds the ingestion pipeline.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"envmon.dev/envmon/pkg/sensor"
)

// ReadingPayload is the JSON wire format a station publishes for one reading.
type ReadingPayload struct {
	SensorID   string    `json:"sensor_id"`
	StationID  string    `json:"station_id,omitempty"`
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	Provenance string    `json:"provenance"`
	UptimeMS   int64     `json:"uptime_ms"`
}

// ParseReading decodes one reading payload. Structural validation beyond
// JSON shape is left to the pipeline.
func ParseReading(data []byte) (sensor.RawReading, error) {
	var p ReadingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return sensor.RawReading{}, fmt.Errorf("failed to decode reading payload: %w", err)
	}
	return p.ToRaw(), nil
}

// ToRaw converts the wire payload to the pipeline's input type.
func (p ReadingPayload) ToRaw() sensor.RawReading {
	return sensor.RawReading{
		SensorID:   p.SensorID,
		StationID:  p.StationID,
		SensorType: sensor.Type(p.SensorType),
		Value:      p.Value,
		Timestamp:  p.Timestamp,
		Provenance: sensor.Provenance(p.Provenance),
		Uptime:     time.Duration(p.UptimeMS) * time.Millisecond,
	}
}

// StationPayload is the JSON wire format for a station registration.
type StationPayload struct {
	SerialNumber string  `json:"serial_number"`
	Name         string  `json:"name"`
	Location     string  `json:"location"`
	Latitude     float32 `json:"latitude"`
	Longitude    float32 `json:"longitude"`
}

// ParseStation decodes one station registration payload.
func ParseStation(data []byte) (StationPayload, error) {
	var p StationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return StationPayload{}, fmt.Errorf("failed to decode station payload: %w", err)
	}
	if p.SerialNumber == "" {
		return StationPayload{}, fmt.Errorf("station payload missing serial number")
	}
	return p, nil
}
