package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"envmon.dev/envmon/pkg/sensor"
)

// ReadingRepo stores and queries scored readings. It satisfies the
// ingestion pipeline's ReadingStore contract.
type ReadingRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewReadingRepo creates a ReadingRepo.
func NewReadingRepo(db *gorm.DB, log *slog.Logger) (*ReadingRepo, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &ReadingRepo{db: db, log: log}, nil
}

// SaveReading persists one scored reading.
func (r *ReadingRepo) SaveReading(ctx context.Context, reading sensor.ScoredReading) error {
	row := toReadingRow(reading)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save reading: %w", err)
	}

	r.log.Debug("reading saved",
		"sensor_id", reading.SensorID,
		"sensor_type", reading.SensorType,
		"quality", reading.Quality,
	)
	return nil
}

// RecentReadings returns up to n readings for the sensor, most recent first.
func (r *ReadingRepo) RecentReadings(ctx context.Context, sensorID string, n int) ([]sensor.ScoredReading, error) {
	var rows []Reading
	err := r.db.WithContext(ctx).
		Where("sensor_id = ?", sensorID).
		Order("timestamp DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}

	out := make([]sensor.ScoredReading, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromReadingRow(row))
	}
	return out, nil
}

// ReadingFilter narrows a range query. Zero-valued fields are ignored.
type ReadingFilter struct {
	Start      time.Time
	End        time.Time
	SensorID   string
	StationID  string
	SensorType sensor.Type
}

// ReadingsInRange returns readings inside [Start, End] matching the filter,
// ordered by timestamp ascending.
func (r *ReadingRepo) ReadingsInRange(ctx context.Context, filter ReadingFilter) ([]sensor.ScoredReading, error) {
	q := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", filter.Start, filter.End)

	if filter.SensorID != "" {
		q = q.Where("sensor_id = ?", filter.SensorID)
	}
	if filter.StationID != "" {
		q = q.Where("station_id = ?", filter.StationID)
	}
	if filter.SensorType != "" {
		q = q.Where("sensor_type = ?", string(filter.SensorType))
	}

	var rows []Reading
	if err := q.Order("timestamp ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query readings in range: %w", err)
	}

	out := make([]sensor.ScoredReading, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromReadingRow(row))
	}
	return out, nil
}

func toReadingRow(reading sensor.ScoredReading) Reading {
	return Reading{
		SensorID:   reading.SensorID,
		StationID:  reading.StationID,
		SensorType: string(reading.SensorType),
		Value:      reading.Value,
		Unit:       reading.Unit,
		Quality:    reading.Quality,
		Valid:      reading.Valid,
		Provenance: string(reading.Provenance),
		Timestamp:  reading.Timestamp,
		UptimeMS:   reading.Uptime.Milliseconds(),
	}
}

func fromReadingRow(row Reading) sensor.ScoredReading {
	return sensor.ScoredReading{
		RawReading: sensor.RawReading{
			SensorID:   row.SensorID,
			StationID:  row.StationID,
			SensorType: sensor.Type(row.SensorType),
			Value:      row.Value,
			Timestamp:  row.Timestamp,
			Provenance: sensor.Provenance(row.Provenance),
			Uptime:     time.Duration(row.UptimeMS) * time.Millisecond,
		},
		Quality: row.Quality,
		Unit:    row.Unit,
		Valid:   row.Valid,
	}
}
