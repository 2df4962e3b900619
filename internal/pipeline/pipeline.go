// Package pipeline drives a raw reading through validation, scoring,
// threshold evaluation, persistence, and alert notification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"envmon.dev/envmon/pkg/metrics"
	"envmon.dev/envmon/pkg/quality"
	"envmon.dev/envmon/pkg/sensor"
	"envmon.dev/envmon/pkg/threshold"
)

// ReadingStore persists scored readings and serves the recent history
// used for jump detection.
type ReadingStore interface {
	SaveReading(ctx context.Context, reading sensor.ScoredReading) error
	RecentReadings(ctx context.Context, sensorID string, n int) ([]sensor.ScoredReading, error)
}

// ThresholdSource supplies the active threshold snapshot for a sensor type.
type ThresholdSource interface {
	ActiveThresholds(ctx context.Context, t sensor.Type) ([]sensor.Threshold, error)
}

// AlertSink receives violations for downstream alerting. Implementations
// own delivery and escalation; the pipeline never retries a failed Notify.
type AlertSink interface {
	Notify(ctx context.Context, reading sensor.ScoredReading, violations []sensor.Violation) error
}

// SensorRegistry tracks which sensors have been heard from. The pipeline
// touches it after a successful persist; a registry failure is logged and
// never fails the ingestion.
type SensorRegistry interface {
	TouchSensor(ctx context.Context, sensorID, stationSerial string, t sensor.Type, seen time.Time) error
}

// ErrInvalidReading marks malformed input rejected before any side effect.
var ErrInvalidReading = errors.New("invalid reading")

// PipelineError wraps a collaborator failure. The reading was not persisted
// and the caller decides whether to resubmit; the pipeline does not retry
// internally, since losing one telemetry point beats blocking the stream.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %s failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Result is the outcome of a successful ingestion.
type Result struct {
	Stored     sensor.ScoredReading
	Violations []sensor.Violation
}

// Config holds the collaborators and settings for a Pipeline.
type Config struct {
	Logger     *slog.Logger
	Store      ReadingStore
	Thresholds ThresholdSource
	Alerts     AlertSink
	// Registry, when set, has its sensor last-seen state updated on every
	// successfully persisted reading.
	Registry SensorRegistry
	// HistoryDepth is how many recent readings are fetched per sensor
	// for jump detection. Defaults to 1.
	HistoryDepth int
	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.PipelineMetrics
}

// Pipeline is the reading ingestion pipeline. It holds no mutable state of
// its own; concurrent Ingest calls are safe as long as the collaborators are.
type Pipeline struct {
	logger       *slog.Logger
	store        ReadingStore
	thresholds   ThresholdSource
	alerts       AlertSink
	registry     SensorRegistry
	historyDepth int
	metrics      *metrics.PipelineMetrics
}

// New creates a Pipeline from the given configuration.
func New(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("reading store cannot be nil")
	}
	if cfg.Thresholds == nil {
		return nil, errors.New("threshold source cannot be nil")
	}

	depth := cfg.HistoryDepth
	if depth <= 0 {
		depth = 1
	}

	return &Pipeline{
		logger:       cfg.Logger,
		store:        cfg.Store,
		thresholds:   cfg.Thresholds,
		alerts:       cfg.Alerts,
		registry:     cfg.Registry,
		historyDepth: depth,
		metrics:      cfg.Metrics,
	}, nil
}

// Ingest runs one raw reading through the full pipeline and returns the
// persisted scored reading together with any threshold violations.
//
// Malformed input fails with ErrInvalidReading before any side effect.
// An unknown sensor type is surfaced as sensor.ErrUnknownSensorType. A
// collaborator fault is wrapped in *PipelineError and the reading is not
// persisted. A failing alert notification never rolls back persistence.
func (p *Pipeline) Ingest(ctx context.Context, raw sensor.RawReading) (Result, error) {
	if err := validate(raw); err != nil {
		p.countIngest(raw.Provenance, "rejected")
		return Result{}, err
	}

	recent, err := p.store.RecentReadings(ctx, raw.SensorID, p.historyDepth)
	if err != nil {
		p.countIngest(raw.Provenance, "error")
		return Result{}, &PipelineError{Stage: "history", Err: err}
	}

	scored, violations, err := p.evaluate(ctx, raw, recent)
	if err != nil {
		p.countIngest(raw.Provenance, "error")
		return Result{}, err
	}

	if err := p.store.SaveReading(ctx, scored); err != nil {
		p.countIngest(raw.Provenance, "error")
		return Result{}, &PipelineError{Stage: "persist", Err: err}
	}

	if p.metrics != nil {
		p.metrics.QualityScore.WithLabelValues(string(raw.SensorType)).Observe(scored.Quality)
		for _, v := range violations {
			p.metrics.ViolationsEmitted.WithLabelValues(string(v.Severity)).Inc()
		}
	}
	p.countIngest(raw.Provenance, "stored")

	// Last-seen bookkeeping rides along with the persisted reading; a
	// registry failure is logged, the reading itself is already stored.
	if p.registry != nil {
		if err := p.registry.TouchSensor(ctx, raw.SensorID, raw.StationID, raw.SensorType, raw.Timestamp); err != nil {
			p.logger.Error("failed to update sensor last seen",
				"sensor_id", raw.SensorID,
				"error", err,
			)
		}
	}

	// Fire-and-forget: alerting failures are logged and counted but never
	// fail the ingestion, the reading is already persisted.
	if len(violations) > 0 && p.alerts != nil {
		if err := p.alerts.Notify(ctx, scored, violations); err != nil {
			p.logger.Error("alert notification failed",
				"sensor_id", raw.SensorID,
				"violations", len(violations),
				"error", err,
			)
			if p.metrics != nil {
				p.metrics.NotifyFailures.Inc()
			}
		}
	}

	p.logger.Debug("reading ingested",
		"sensor_id", raw.SensorID,
		"sensor_type", raw.SensorType,
		"quality", scored.Quality,
		"valid", scored.Valid,
		"violations", len(violations),
	)

	return Result{Stored: scored, Violations: violations}, nil
}

// Check scores a hypothetical reading and evaluates it against the current
// thresholds without persisting anything or notifying the alert sink.
func (p *Pipeline) Check(ctx context.Context, raw sensor.RawReading) (Result, error) {
	if err := validate(raw); err != nil {
		return Result{}, err
	}

	recent, err := p.store.RecentReadings(ctx, raw.SensorID, p.historyDepth)
	if err != nil {
		return Result{}, &PipelineError{Stage: "history", Err: err}
	}

	scored, violations, err := p.evaluate(ctx, raw, recent)
	if err != nil {
		return Result{}, err
	}

	return Result{Stored: scored, Violations: violations}, nil
}

// evaluate scores the reading and applies the active threshold snapshot.
func (p *Pipeline) evaluate(ctx context.Context, raw sensor.RawReading, recent []sensor.ScoredReading) (sensor.ScoredReading, []sensor.Violation, error) {
	scored, err := quality.Score(raw, recent)
	if err != nil {
		return sensor.ScoredReading{}, nil, err
	}

	thresholds, err := p.thresholds.ActiveThresholds(ctx, raw.SensorType)
	if err != nil {
		return sensor.ScoredReading{}, nil, &PipelineError{Stage: "thresholds", Err: err}
	}

	violations, err := threshold.Evaluate(scored, thresholds)
	if err != nil {
		return sensor.ScoredReading{}, nil, err
	}

	return scored, violations, nil
}

// validate rejects structurally malformed readings. Out-of-range values are
// not errors here; they lower the quality score instead.
func validate(raw sensor.RawReading) error {
	if raw.SensorID == "" {
		return fmt.Errorf("%w: missing sensor id", ErrInvalidReading)
	}
	if raw.SensorType == "" {
		return fmt.Errorf("%w: missing sensor type", ErrInvalidReading)
	}
	if !raw.SensorType.Valid() {
		return fmt.Errorf("%w: %q", sensor.ErrUnknownSensorType, raw.SensorType)
	}
	if !raw.Provenance.Valid() {
		return fmt.Errorf("%w: unknown provenance %q", ErrInvalidReading, raw.Provenance)
	}
	if raw.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidReading)
	}
	return nil
}

func (p *Pipeline) countIngest(prov sensor.Provenance, status string) {
	if p.metrics != nil {
		p.metrics.ReadingsIngested.WithLabelValues(string(prov), status).Inc()
	}
}
