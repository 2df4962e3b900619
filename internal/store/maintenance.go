package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Recurrence is how often a maintenance task repeats.
type Recurrence string

// Supported recurrence intervals. Yearly is its own interval and advances
// the calendar year, it is never approximated as twelve monthly steps.
const (
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
	RecurYearly  Recurrence = "yearly"
)

// Valid reports whether r is a supported recurrence.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		return true
	}
	return false
}

// Next returns the occurrence strictly after the given time.
func (r Recurrence) Next(after time.Time) time.Time {
	switch r {
	case RecurDaily:
		return after.AddDate(0, 0, 1)
	case RecurWeekly:
		return after.AddDate(0, 0, 7)
	case RecurMonthly:
		return after.AddDate(0, 1, 0)
	case RecurYearly:
		return after.AddDate(1, 0, 0)
	}
	return after
}

// NextDue returns when the schedule next requires work. Before the first
// completion that is the start date itself.
func (m MaintenanceSchedule) NextDue() time.Time {
	if m.LastCompleted == nil {
		return m.StartDate
	}
	return m.Recurrence.Next(*m.LastCompleted)
}

// ErrScheduleNotFound is returned when a maintenance schedule does not exist.
var ErrScheduleNotFound = errors.New("maintenance schedule not found")

// MaintenanceRepo manages recurring maintenance schedules for stations.
type MaintenanceRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewMaintenanceRepo creates a MaintenanceRepo.
func NewMaintenanceRepo(db *gorm.DB, log *slog.Logger) (*MaintenanceRepo, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &MaintenanceRepo{db: db, log: log}, nil
}

// Create validates and inserts a schedule.
func (r *MaintenanceRepo) Create(ctx context.Context, schedule *MaintenanceSchedule) error {
	if schedule.StationSerial == "" {
		return errors.New("station serial cannot be empty")
	}
	if schedule.Title == "" {
		return errors.New("title cannot be empty")
	}
	if !schedule.Recurrence.Valid() {
		return fmt.Errorf("invalid recurrence %q", schedule.Recurrence)
	}
	if schedule.StartDate.IsZero() {
		return errors.New("start date cannot be zero")
	}

	if err := r.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return fmt.Errorf("failed to create maintenance schedule: %w", err)
	}

	r.log.Info("maintenance schedule created",
		"id", schedule.ID,
		"station", schedule.StationSerial,
		"recurrence", schedule.Recurrence,
	)
	return nil
}

// List returns all schedules for a station, or all schedules when serial is
// empty.
func (r *MaintenanceRepo) List(ctx context.Context, stationSerial string) ([]MaintenanceSchedule, error) {
	q := r.db.WithContext(ctx).Order("start_date")
	if stationSerial != "" {
		q = q.Where("station_serial = ?", stationSerial)
	}

	var rows []MaintenanceSchedule
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list maintenance schedules: %w", err)
	}
	return rows, nil
}

// DueBefore returns active schedules whose next occurrence falls at or
// before the deadline.
func (r *MaintenanceRepo) DueBefore(ctx context.Context, deadline time.Time) ([]MaintenanceSchedule, error) {
	var rows []MaintenanceSchedule
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query maintenance schedules: %w", err)
	}

	// Recurrence math stays in Go so yearly schedules use real calendar
	// years rather than a SQL interval approximation.
	due := make([]MaintenanceSchedule, 0, len(rows))
	for _, row := range rows {
		if !row.NextDue().After(deadline) {
			due = append(due, row)
		}
	}
	return due, nil
}

// Complete records that the schedule's work was done at the given time.
func (r *MaintenanceRepo) Complete(ctx context.Context, id uint, completedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&MaintenanceSchedule{}).
		Where("id = ?", id).
		Update("last_completed", completedAt)
	if res.Error != nil {
		return fmt.Errorf("failed to complete maintenance schedule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrScheduleNotFound
	}

	r.log.Info("maintenance schedule completed", "id", id)
	return nil
}
