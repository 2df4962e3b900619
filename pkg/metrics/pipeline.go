package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for the reading ingestion pipeline.
type PipelineMetrics struct {
	ReadingsIngested  *prometheus.CounterVec
	QualityScore      *prometheus.HistogramVec
	ViolationsEmitted *prometheus.CounterVec
	NotifyFailures    prometheus.Counter
	IngestDuration    *prometheus.HistogramVec
}

// NewPipelineMetrics creates and registers ingestion pipeline metrics.
func NewPipelineMetrics(namespace string) *PipelineMetrics {
	m := &PipelineMetrics{
		ReadingsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "readings_ingested_total",
				Help:      "Total number of readings submitted to the pipeline",
			},
			[]string{"provenance", "status"}, // status: stored, rejected, error
		),
		QualityScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "quality_score",
				Help:      "Distribution of quality scores assigned to readings",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"sensor_type"},
		),
		ViolationsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "violations_emitted_total",
				Help:      "Total number of threshold violations emitted",
			},
			[]string{"severity"},
		),
		NotifyFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "notify_failures_total",
				Help:      "Total number of failed alert notifications",
			},
		),
		IngestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "ingest_duration_seconds",
				Help:      "Duration of full ingest calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"}, // source: http, mqtt, amqp
		),
	}

	MustRegister(
		m.ReadingsIngested,
		m.QualityScore,
		m.ViolationsEmitted,
		m.NotifyFailures,
		m.IngestDuration,
	)

	return m
}
