package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the station simulator.
type SimulatorMetrics struct {
	ReadingsGenerated  *prometheus.CounterVec
	PublishFailures    *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	StationsSimulated  prometheus.Gauge
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		ReadingsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "readings_generated_total",
				Help:      "Total number of synthetic readings generated",
			},
			[]string{"sensor_type", "provenance"},
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "publish_failures_total",
				Help:      "Total number of failed reading publishes",
			},
			[]string{"transport", "reason"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "generation_duration_seconds",
				Help:      "Duration of reading generation cycles",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"sensor_type"},
		),
		StationsSimulated: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "stations_simulated",
				Help:      "Number of stations currently being simulated",
			},
		),
	}

	MustRegister(
		m.ReadingsGenerated,
		m.PublishFailures,
		m.GenerationDuration,
		m.StationsSimulated,
	)

	return m
}
