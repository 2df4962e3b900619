package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"envmon.dev/envmon/pkg/sensor"
)

// ErrThresholdNotFound is returned when a threshold row does not exist.
var ErrThresholdNotFound = errors.New("threshold not found")

// ThresholdRepo manages admin-editable threshold rows and produces the
// immutable snapshots the threshold engine evaluates against.
type ThresholdRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewThresholdRepo creates a ThresholdRepo.
func NewThresholdRepo(db *gorm.DB, log *slog.Logger) (*ThresholdRepo, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &ThresholdRepo{db: db, log: log}, nil
}

// ActiveThresholds returns value snapshots of all active thresholds for the
// sensor type. Later edits to the rows never affect snapshots already handed
// out.
func (r *ThresholdRepo) ActiveThresholds(ctx context.Context, t sensor.Type) ([]sensor.Threshold, error) {
	var rows []ThresholdConfig
	err := r.db.WithContext(ctx).
		Where("sensor_type = ? AND active = ?", string(t), true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query active thresholds: %w", err)
	}

	out := make([]sensor.Threshold, 0, len(rows))
	for _, row := range rows {
		out = append(out, toThreshold(row))
	}
	return out, nil
}

// List returns all threshold rows.
func (r *ThresholdRepo) List(ctx context.Context) ([]ThresholdConfig, error) {
	var rows []ThresholdConfig
	if err := r.db.WithContext(ctx).Order("sensor_type, severity").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list thresholds: %w", err)
	}
	return rows, nil
}

// Get returns one threshold row by ID.
func (r *ThresholdRepo) Get(ctx context.Context, id uint) (ThresholdConfig, error) {
	var row ThresholdConfig
	err := r.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ThresholdConfig{}, ErrThresholdNotFound
	}
	if err != nil {
		return ThresholdConfig{}, fmt.Errorf("failed to get threshold: %w", err)
	}
	return row, nil
}

// Create validates and inserts a threshold row.
func (r *ThresholdRepo) Create(ctx context.Context, row *ThresholdConfig) error {
	if err := toThreshold(*row).Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create threshold: %w", err)
	}

	r.log.Info("threshold created",
		"id", row.ID,
		"sensor_type", row.SensorType,
		"severity", row.Severity,
	)
	return nil
}

// Update validates and replaces an existing threshold row.
func (r *ThresholdRepo) Update(ctx context.Context, row *ThresholdConfig) error {
	if err := toThreshold(*row).Validate(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&ThresholdConfig{}).
		Where("id = ?", row.ID).
		Select("SensorType", "Severity", "MinValue", "MaxValue", "Active", "Description").
		Updates(row)
	if res.Error != nil {
		return fmt.Errorf("failed to update threshold: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrThresholdNotFound
	}

	r.log.Info("threshold updated", "id", row.ID)
	return nil
}

// Delete removes a threshold row.
func (r *ThresholdRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&ThresholdConfig{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete threshold: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrThresholdNotFound
	}

	r.log.Info("threshold deleted", "id", id)
	return nil
}

func toThreshold(row ThresholdConfig) sensor.Threshold {
	return sensor.Threshold{
		SensorType:  sensor.Type(row.SensorType),
		Severity:    sensor.Severity(row.Severity),
		MinValue:    copyBound(row.MinValue),
		MaxValue:    copyBound(row.MaxValue),
		Active:      row.Active,
		Description: row.Description,
	}
}

// copyBound detaches the snapshot from the row so later edits cannot leak
// through the shared pointer.
func copyBound(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
