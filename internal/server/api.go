// Package server hosts the HTTP API and wires the ingestion pipeline,
// queue consumers, and storage into one process.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"envmon.dev/envmon/internal/pipeline"
	"envmon.dev/envmon/internal/store"
	"envmon.dev/envmon/pkg/metrics"
	"envmon.dev/envmon/pkg/sensor"
)

// ReadingQuerier serves historical readings for listing and aggregation.
type ReadingQuerier interface {
	ReadingsInRange(ctx context.Context, filter store.ReadingFilter) ([]sensor.ScoredReading, error)
}

// ThresholdAdmin manages threshold rows.
type ThresholdAdmin interface {
	List(ctx context.Context) ([]store.ThresholdConfig, error)
	Get(ctx context.Context, id uint) (store.ThresholdConfig, error)
	Create(ctx context.Context, row *store.ThresholdConfig) error
	Update(ctx context.Context, row *store.ThresholdConfig) error
	Delete(ctx context.Context, id uint) error
}

// AlertReader lists and acknowledges alert events.
type AlertReader interface {
	List(ctx context.Context, filter store.AlertFilter) ([]store.AlertEvent, error)
	Acknowledge(ctx context.Context, eventID string) error
}

// StationReader serves the station registry.
type StationReader interface {
	List(ctx context.Context) ([]store.Station, error)
	Get(ctx context.Context, serial string) (store.Station, error)
	StaleSensors(ctx context.Context, cutoff time.Time) ([]store.Sensor, error)
}

// MaintenanceAdmin manages maintenance schedules.
type MaintenanceAdmin interface {
	Create(ctx context.Context, schedule *store.MaintenanceSchedule) error
	List(ctx context.Context, stationSerial string) ([]store.MaintenanceSchedule, error)
	DueBefore(ctx context.Context, deadline time.Time) ([]store.MaintenanceSchedule, error)
	Complete(ctx context.Context, id uint, completedAt time.Time) error
}

// API is the HTTP handler set.
type API struct {
	logger      *slog.Logger
	pipe        *pipeline.Pipeline
	readings    ReadingQuerier
	thresholds  ThresholdAdmin
	alerts      AlertReader
	stations    StationReader
	maintenance MaintenanceAdmin
	metrics     *metrics.APIMetrics
}

// APIConfig holds the collaborators for the API.
type APIConfig struct {
	Logger      *slog.Logger
	Pipeline    *pipeline.Pipeline
	Readings    ReadingQuerier
	Thresholds  ThresholdAdmin
	Alerts      AlertReader
	Stations    StationReader
	Maintenance MaintenanceAdmin
	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.APIMetrics
}

// NewAPI creates the HTTP handler set.
func NewAPI(cfg *APIConfig) (*API, error) {
	if cfg == nil {
		return nil, errors.New("api config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if cfg.Readings == nil {
		return nil, errors.New("reading querier cannot be nil")
	}
	if cfg.Thresholds == nil {
		return nil, errors.New("threshold admin cannot be nil")
	}
	if cfg.Alerts == nil {
		return nil, errors.New("alert reader cannot be nil")
	}
	if cfg.Stations == nil {
		return nil, errors.New("station reader cannot be nil")
	}
	if cfg.Maintenance == nil {
		return nil, errors.New("maintenance admin cannot be nil")
	}

	return &API{
		logger:      cfg.Logger,
		pipe:        cfg.Pipeline,
		readings:    cfg.Readings,
		thresholds:  cfg.Thresholds,
		alerts:      cfg.Alerts,
		stations:    cfg.Stations,
		maintenance: cfg.Maintenance,
		metrics:     cfg.Metrics,
	}, nil
}

// Register mounts all routes on the fiber app.
func (a *API) Register(app *fiber.App) {
	app.Use(a.observe)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")

	v1.Post("/readings", a.postReading)
	v1.Post("/readings/validate", a.validateReading)
	v1.Get("/readings", a.listReadings)
	v1.Get("/readings/aggregate", a.aggregateReadings)

	v1.Get("/thresholds", a.listThresholds)
	v1.Post("/thresholds", a.createThreshold)
	v1.Get("/thresholds/:id", a.getThreshold)
	v1.Put("/thresholds/:id", a.updateThreshold)
	v1.Delete("/thresholds/:id", a.deleteThreshold)

	v1.Get("/alerts", a.listAlerts)
	v1.Post("/alerts/:event_id/ack", a.ackAlert)

	v1.Get("/stations", a.listStations)
	v1.Get("/stations/:serial", a.getStation)
	v1.Get("/sensors/stale", a.listStaleSensors)

	v1.Get("/maintenance", a.listMaintenance)
	v1.Post("/maintenance", a.createMaintenance)
	v1.Get("/maintenance/due", a.dueMaintenance)
	v1.Post("/maintenance/:id/complete", a.completeMaintenance)

	v1.Get("/sensor-types", a.listSensorTypes)
}

// observe records request metrics when a collector is configured.
func (a *API) observe(c *fiber.Ctx) error {
	if a.metrics == nil {
		return c.Next()
	}

	method := c.Method()
	path := c.Path()
	inFlight := a.metrics.HTTPRequestsInFlight.WithLabelValues(method, path)
	inFlight.Inc()
	start := time.Now()

	err := c.Next()

	inFlight.Dec()
	a.metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	a.metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().StatusCode())).Inc()
	return err
}
