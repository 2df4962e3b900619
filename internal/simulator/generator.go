package simulator

import (
	"math"
	"math/rand"
	"time"

	"envmon.dev/envmon/pkg/sensor"
)

// Generator produces a plausible value series for one sensor. It random-walks
// around a baseline inside the type's usual band, follows a daily cycle, and
// occasionally injects an anomaly that escapes the band.
type Generator struct {
	sensorType sensor.Type
	rng        sensor.Range
	baseline   float64
	amplitude  float64
	noise      float64
	last       float64
	// anomalyChance is the per-reading probability of an out-of-band spike.
	anomalyChance float64
}

// NewGenerator creates a generator seeded from the type's usual band.
// Uses math/rand; weak randomness is fine for synthetic data.
func NewGenerator(t sensor.Type) (*Generator, error) {
	rng, err := sensor.RangeFor(t)
	if err != nil {
		return nil, err
	}

	band := rng.UnusualMax - rng.UnusualMin
	baseline := rng.UnusualMin + band*(0.3+rand.Float64()*0.4) // #nosec G404

	return &Generator{
		sensorType:    t,
		rng:           rng,
		baseline:      baseline,
		amplitude:     band * 0.1,
		noise:         band * 0.02,
		last:          baseline,
		anomalyChance: 0.02,
	}, nil
}

// Next returns the value for the given instant.
func (g *Generator) Next(now time.Time) float64 {
	hour := float64(now.Hour()) + float64(now.Minute())/60

	// Daily cycle peaking mid-afternoon.
	cycle := g.amplitude * math.Sin((hour-6)*math.Pi/12)

	// Random walk pulls back toward the baseline so the series cannot
	// drift out of the band on its own.
	step := (rand.Float64() - 0.5) * g.noise * 2 // #nosec G404
	g.last += step + (g.baseline-g.last)*0.05

	value := g.last + cycle

	if rand.Float64() < g.anomalyChance { // #nosec G404
		// Spike past the usual band, occasionally past the absolute range.
		band := g.rng.UnusualMax - g.rng.UnusualMin
		spike := band * (0.3 + rand.Float64()*0.5) // #nosec G404
		if rand.Float64() < 0.5 {                  // #nosec G404
			spike = -spike
		}
		value += spike
	}

	return math.Round(value*100) / 100
}

// Reading produces a full raw reading for the sensor at the given instant.
// Most readings carry simulated provenance; a few replay as backup data.
func (s *Sensor) Reading(stationSerial string, now time.Time, uptime time.Duration) sensor.RawReading {
	prov := sensor.ProvenanceSimulated
	if rand.Float64() < 0.05 { // #nosec G404
		prov = sensor.ProvenanceBackup
	}

	return sensor.RawReading{
		SensorID:   s.SerialNumber,
		StationID:  stationSerial,
		SensorType: s.SensorType,
		Value:      s.gen.Next(now),
		Timestamp:  now,
		Provenance: prov,
		Uptime:     uptime,
	}
}
