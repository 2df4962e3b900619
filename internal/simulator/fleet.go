// Package simulator generates a synthetic station fleet and publishes
// realistic readings for it, for demos and load testing.
package simulator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"envmon.dev/envmon/pkg/sensor"
)

// Station is one synthetic monitoring station.
type Station struct {
	SerialNumber string  `fake:"{uuid}"`
	Name         string  `fake:"{adjective} {noun}"`
	Location     string  `fake:"{city}, {state}"`
	Latitude     float64 `fake:"{latitude}"`
	Longitude    float64 `fake:"{longitude}"`
	Sensors      []*Sensor
	StartedAt    time.Time
}

// Sensor is one synthetic sensor, owning the generator for its value series.
type Sensor struct {
	SerialNumber string
	SensorType   sensor.Type
	gen          *Generator
}

// defaultSensorTypes is the complement a simulated station carries.
var defaultSensorTypes = []sensor.Type{
	sensor.TypeTemperature,
	sensor.TypeHumidity,
	sensor.TypePressure,
	sensor.TypeAirQuality,
	sensor.TypeCO2,
	sensor.TypeNoise,
}

// NewStation creates a station with fake metadata and one sensor per
// default type. Uses math/rand throughout; weak randomness is fine for
// synthetic data.
func NewStation() (*Station, error) {
	var station Station
	if err := gofakeit.Struct(&station); err != nil {
		return nil, fmt.Errorf("failed to generate station: %w", err)
	}
	station.StartedAt = time.Now().UTC()

	for i, t := range defaultSensorTypes {
		gen, err := NewGenerator(t)
		if err != nil {
			return nil, err
		}
		station.Sensors = append(station.Sensors, &Sensor{
			SerialNumber: fmt.Sprintf("%s-s%02d", station.SerialNumber[:8], i+1),
			SensorType:   t,
			gen:          gen,
		})
	}
	return &station, nil
}

// NewFleet creates between min and max stations.
func NewFleet(min, max int) ([]*Station, error) {
	if min <= 0 {
		min = 1
	}
	if max < min {
		max = min
	}

	count := min
	if max > min {
		count += rand.Intn(max - min + 1) // #nosec G404 - synthetic data
	}

	fleet := make([]*Station, 0, count)
	for range count {
		station, err := NewStation()
		if err != nil {
			return nil, err
		}
		fleet = append(fleet, station)
	}
	return fleet, nil
}

// Uptime reports how long the station has been running.
func (s *Station) Uptime(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}
