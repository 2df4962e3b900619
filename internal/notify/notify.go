// Package notify delivers threshold violations to downstream consumers. The
// ingestion pipeline hands violations to an AlertSink; this package provides
// a broker-backed sink, a database-backed sink, and a fan-out combinator.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"envmon.dev/envmon/internal/pipeline"
	"envmon.dev/envmon/internal/store"
	"envmon.dev/envmon/pkg/mq"
	"envmon.dev/envmon/pkg/sensor"
)

// AlertMessage is the JSON payload published to the alerts queue. One
// message carries every violation a single reading produced.
type AlertMessage struct {
	SensorID   string             `json:"sensor_id"`
	StationID  string             `json:"station_id,omitempty"`
	SensorType string             `json:"sensor_type"`
	Value      float64            `json:"value"`
	Unit       string             `json:"unit"`
	Quality    float64            `json:"quality"`
	Timestamp  time.Time          `json:"timestamp"`
	Violations []ViolationMessage `json:"violations"`
}

// ViolationMessage is one violation inside an AlertMessage.
type ViolationMessage struct {
	Severity       string    `json:"severity"`
	ActualValue    float64   `json:"actual_value"`
	ThresholdValue float64   `json:"threshold_value"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// QueueSink publishes alert messages to a RabbitMQ queue.
type QueueSink struct {
	client mq.ClientInterface
	log    *slog.Logger
}

// NewQueueSink creates a QueueSink.
func NewQueueSink(client mq.ClientInterface, log *slog.Logger) (*QueueSink, error) {
	if client == nil {
		return nil, errors.New("mq client cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &QueueSink{client: client, log: log}, nil
}

// Notify publishes one alert message for the reading's violations.
func (s *QueueSink) Notify(ctx context.Context, reading sensor.ScoredReading, violations []sensor.Violation) error {
	if len(violations) == 0 {
		return nil
	}

	msg := AlertMessage{
		SensorID:   reading.SensorID,
		StationID:  reading.StationID,
		SensorType: string(reading.SensorType),
		Value:      reading.Value,
		Unit:       reading.Unit,
		Quality:    reading.Quality,
		Timestamp:  reading.Timestamp,
		Violations: make([]ViolationMessage, 0, len(violations)),
	}
	for _, v := range violations {
		msg.Violations = append(msg.Violations, ViolationMessage{
			Severity:       string(v.Severity),
			ActualValue:    v.ActualValue,
			ThresholdValue: v.ThresholdValue,
			Message:        v.Message,
			Timestamp:      v.Timestamp,
		})
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal alert message: %w", err)
	}

	if err := s.client.Push(ctx, data); err != nil {
		return fmt.Errorf("failed to publish alert message: %w", err)
	}

	s.log.Debug("alert message published",
		"sensor_id", reading.SensorID,
		"violations", len(violations),
	)
	return nil
}

// StoreSink persists violations through the alert repository.
type StoreSink struct {
	alerts *store.AlertRepo
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(alerts *store.AlertRepo) (*StoreSink, error) {
	if alerts == nil {
		return nil, errors.New("alert repo cannot be nil")
	}
	return &StoreSink{alerts: alerts}, nil
}

// Notify records the violations as alert events.
func (s *StoreSink) Notify(ctx context.Context, reading sensor.ScoredReading, violations []sensor.Violation) error {
	return s.alerts.Record(ctx, reading, violations)
}

// Fanout delivers to every sink and joins the failures. A failing sink never
// blocks delivery to the others.
type Fanout struct {
	sinks []pipeline.AlertSink
}

// NewFanout creates a Fanout over the given sinks. Nil sinks are skipped.
func NewFanout(sinks ...pipeline.AlertSink) *Fanout {
	kept := make([]pipeline.AlertSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{sinks: kept}
}

// Notify delivers to all sinks.
func (f *Fanout) Notify(ctx context.Context, reading sensor.ScoredReading, violations []sensor.Violation) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Notify(ctx, reading, violations); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ pipeline.AlertSink = (*QueueSink)(nil)
	_ pipeline.AlertSink = (*StoreSink)(nil)
	_ pipeline.AlertSink = (*Fanout)(nil)
)
