package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"envmon.dev/envmon/pkg/sensor"
)

// ErrAlertNotFound is returned when an alert event does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// AlertRepo persists threshold violations as alert events.
type AlertRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewAlertRepo creates an AlertRepo.
func NewAlertRepo(db *gorm.DB, log *slog.Logger) (*AlertRepo, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &AlertRepo{db: db, log: log}, nil
}

// Record stores one alert event per violation, each under a fresh event ID.
func (r *AlertRepo) Record(ctx context.Context, reading sensor.ScoredReading, violations []sensor.Violation) error {
	if len(violations) == 0 {
		return nil
	}

	rows := make([]AlertEvent, 0, len(violations))
	for _, v := range violations {
		rows = append(rows, AlertEvent{
			EventID:        uuid.NewString(),
			SensorID:       reading.SensorID,
			StationID:      reading.StationID,
			SensorType:     string(v.SensorType),
			Severity:       string(v.Severity),
			ActualValue:    v.ActualValue,
			ThresholdValue: v.ThresholdValue,
			Message:        v.Message,
			Timestamp:      v.Timestamp,
		})
	}

	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to record alerts: %w", err)
	}

	r.log.Info("alerts recorded",
		"sensor_id", reading.SensorID,
		"count", len(rows),
	)
	return nil
}

// AlertFilter narrows an alert listing. Zero-valued fields are ignored.
type AlertFilter struct {
	SensorID    string
	Severity    string
	Limit       int
	OnlyUnacked bool
}

// List returns alert events, most recent first.
func (r *AlertRepo) List(ctx context.Context, filter AlertFilter) ([]AlertEvent, error) {
	q := r.db.WithContext(ctx).Order("timestamp DESC")

	if filter.SensorID != "" {
		q = q.Where("sensor_id = ?", filter.SensorID)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if filter.OnlyUnacked {
		q = q.Where("acknowledged = ?", false)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []AlertEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return rows, nil
}

// Acknowledge marks one alert event as handled.
func (r *AlertRepo) Acknowledge(ctx context.Context, eventID string) error {
	res := r.db.WithContext(ctx).Model(&AlertEvent{}).
		Where("event_id = ?", eventID).
		Update("acknowledged", true)
	if res.Error != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlertNotFound
	}

	r.log.Info("alert acknowledged", "event_id", eventID)
	return nil
}
