// Package store persists stations, sensors, readings, thresholds, alerts,
// and maintenance schedules to PostgreSQL via GORM, and exposes the
// repositories the ingestion pipeline and HTTP API depend on.
package store

import (
	"time"

	"gorm.io/gorm"
)

// Reading is a scored sensor reading stored in the database.
type Reading struct {
	Timestamp  time.Time `gorm:"index:idx_sensor_timestamp;index:idx_timestamp;not null" json:"timestamp"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	SensorID   string    `gorm:"index:idx_sensor_timestamp;not null" json:"sensor_id"`
	StationID  string    `gorm:"index:idx_station" json:"station_id"`
	SensorType string    `gorm:"index:idx_sensor_type;not null" json:"sensor_type"`
	Provenance string    `gorm:"not null" json:"provenance"`
	Unit       string    `gorm:"not null" json:"unit"`
	Value      float64   `gorm:"not null" json:"value"`
	Quality    float64   `gorm:"not null" json:"quality"`
	UptimeMS   int64     `json:"uptime_ms"`
	Valid      bool      `gorm:"not null" json:"valid"`
	ID         uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the Reading model.
func (Reading) TableName() string {
	return "readings"
}

// Station is a monitoring station owning one or more sensors.
type Station struct {
	SerialNumber string         `gorm:"uniqueIndex;not null" json:"serial_number"`
	Name         string         `gorm:"not null" json:"name"`
	Location     string         `gorm:"not null" json:"location"`
	LastSeen     time.Time      `gorm:"index:idx_station_last_seen" json:"last_seen"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Latitude     float32        `gorm:"not null" json:"latitude"`
	Longitude    float32        `gorm:"not null" json:"longitude"`
	ID           uint           `gorm:"primaryKey" json:"id"`
	Sensors      []Sensor       `gorm:"foreignKey:StationSerial;references:SerialNumber" json:"sensors,omitempty"`
}

// TableName specifies the table name for the Station model.
func (Station) TableName() string {
	return "stations"
}

// Sensor is one measuring unit attached to a station.
type Sensor struct {
	SerialNumber  string    `gorm:"uniqueIndex;not null" json:"serial_number"`
	StationSerial string    `gorm:"index;not null" json:"station_serial"`
	SensorType    string    `gorm:"not null" json:"sensor_type"`
	LastSeen      time.Time `gorm:"index:idx_sensor_last_seen" json:"last_seen"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	ID            uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the Sensor model.
func (Sensor) TableName() string {
	return "sensors"
}

// ThresholdConfig is an admin-editable threshold row. The threshold engine
// never sees this type; rows are converted to sensor.Threshold snapshots.
type ThresholdConfig struct {
	SensorType  string    `gorm:"index:idx_threshold_type;not null" json:"sensor_type"`
	Severity    string    `gorm:"not null" json:"severity"`
	Description string    `json:"description"`
	MinValue    *float64  `json:"min_value"`
	MaxValue    *float64  `json:"max_value"`
	Active      bool      `gorm:"index:idx_threshold_type;not null" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	ID          uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the ThresholdConfig model.
func (ThresholdConfig) TableName() string {
	return "thresholds"
}

// AlertEvent is one persisted threshold violation.
type AlertEvent struct {
	EventID        string    `gorm:"uniqueIndex;not null" json:"event_id"`
	SensorID       string    `gorm:"index;not null" json:"sensor_id"`
	StationID      string    `gorm:"index" json:"station_id"`
	SensorType     string    `gorm:"not null" json:"sensor_type"`
	Severity       string    `gorm:"index;not null" json:"severity"`
	Message        string    `gorm:"not null" json:"message"`
	ActualValue    float64   `gorm:"not null" json:"actual_value"`
	ThresholdValue float64   `gorm:"not null" json:"threshold_value"`
	Timestamp      time.Time `gorm:"index;not null" json:"timestamp"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	Acknowledged   bool      `gorm:"index;not null" json:"acknowledged"`
	ID             uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the AlertEvent model.
func (AlertEvent) TableName() string {
	return "alert_events"
}

// MaintenanceSchedule is a recurring maintenance task for a station.
type MaintenanceSchedule struct {
	StationSerial string     `gorm:"index;not null" json:"station_serial"`
	Title         string     `gorm:"not null" json:"title"`
	Notes         string     `json:"notes"`
	Recurrence    Recurrence `gorm:"not null" json:"recurrence"`
	StartDate     time.Time  `gorm:"not null" json:"start_date"`
	LastCompleted *time.Time `json:"last_completed"`
	Active        bool       `gorm:"not null" json:"active"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ID            uint       `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the MaintenanceSchedule model.
func (MaintenanceSchedule) TableName() string {
	return "maintenance_schedules"
}
