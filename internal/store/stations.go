package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"envmon.dev/envmon/pkg/sensor"
)

// ErrStationNotFound is returned when a station does not exist.
var ErrStationNotFound = errors.New("station not found")

// StationRepo maintains the station and sensor registry.
type StationRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewStationRepo creates a StationRepo.
func NewStationRepo(db *gorm.DB, log *slog.Logger) (*StationRepo, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &StationRepo{db: db, log: log}, nil
}

// Register upserts a station by serial number. A re-registration updates the
// station's metadata in place instead of creating a duplicate.
func (r *StationRepo) Register(ctx context.Context, station *Station) error {
	if station.SerialNumber == "" {
		return errors.New("station serial number cannot be empty")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "serial_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "location", "latitude", "longitude", "updated_at"}),
	}).Create(station).Error
	if err != nil {
		return fmt.Errorf("failed to register station: %w", err)
	}

	r.log.Info("station registered",
		"serial_number", station.SerialNumber,
		"name", station.Name,
	)
	return nil
}

// TouchSensor upserts the sensor row for an incoming reading and bumps
// LastSeen on both the sensor and its station.
func (r *StationRepo) TouchSensor(ctx context.Context, sensorID, stationSerial string, t sensor.Type, seen time.Time) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "serial_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen", "updated_at"}),
	}).Create(&Sensor{
		SerialNumber:  sensorID,
		StationSerial: stationSerial,
		SensorType:    string(t),
		LastSeen:      seen,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to touch sensor: %w", err)
	}

	if stationSerial == "" {
		return nil
	}

	err = r.db.WithContext(ctx).Model(&Station{}).
		Where("serial_number = ? AND last_seen < ?", stationSerial, seen).
		Update("last_seen", seen).Error
	if err != nil {
		return fmt.Errorf("failed to touch station: %w", err)
	}
	return nil
}

// Get returns one station with its sensors.
func (r *StationRepo) Get(ctx context.Context, serial string) (Station, error) {
	var station Station
	err := r.db.WithContext(ctx).Preload("Sensors").
		Where("serial_number = ?", serial).
		First(&station).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Station{}, ErrStationNotFound
	}
	if err != nil {
		return Station{}, fmt.Errorf("failed to get station: %w", err)
	}
	return station, nil
}

// List returns all stations with their sensors.
func (r *StationRepo) List(ctx context.Context) ([]Station, error) {
	var stations []Station
	err := r.db.WithContext(ctx).Preload("Sensors").
		Order("serial_number").
		Find(&stations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	return stations, nil
}

// StaleSensors returns sensors not seen since the cutoff, oldest first.
func (r *StationRepo) StaleSensors(ctx context.Context, cutoff time.Time) ([]Sensor, error) {
	var sensors []Sensor
	err := r.db.WithContext(ctx).
		Where("last_seen < ?", cutoff).
		Order("last_seen ASC").
		Find(&sensors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stale sensors: %w", err)
	}
	return sensors, nil
}
