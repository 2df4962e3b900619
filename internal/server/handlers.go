package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"envmon.dev/envmon/internal/ingest"
	"envmon.dev/envmon/internal/pipeline"
	"envmon.dev/envmon/internal/store"
	"envmon.dev/envmon/pkg/aggregate"
	"envmon.dev/envmon/pkg/sensor"
)

// readingResponse is the JSON shape of a scored reading.
type readingResponse struct {
	SensorID   string    `json:"sensor_id"`
	StationID  string    `json:"station_id,omitempty"`
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	Quality    float64   `json:"quality"`
	Valid      bool      `json:"valid"`
	Provenance string    `json:"provenance"`
	Timestamp  time.Time `json:"timestamp"`
}

// violationResponse is the JSON shape of a threshold violation.
type violationResponse struct {
	SensorType     string    `json:"sensor_type"`
	Severity       string    `json:"severity"`
	ActualValue    float64   `json:"actual_value"`
	ThresholdValue float64   `json:"threshold_value"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// ingestResponse is returned by the ingest and validate endpoints.
type ingestResponse struct {
	Reading    readingResponse     `json:"reading"`
	Violations []violationResponse `json:"violations"`
}

func toReadingResponse(r sensor.ScoredReading) readingResponse {
	return readingResponse{
		SensorID:   r.SensorID,
		StationID:  r.StationID,
		SensorType: string(r.SensorType),
		Value:      r.Value,
		Unit:       r.Unit,
		Quality:    r.Quality,
		Valid:      r.Valid,
		Provenance: string(r.Provenance),
		Timestamp:  r.Timestamp,
	}
}

func toIngestResponse(result pipeline.Result) ingestResponse {
	resp := ingestResponse{
		Reading:    toReadingResponse(result.Stored),
		Violations: make([]violationResponse, 0, len(result.Violations)),
	}
	for _, v := range result.Violations {
		resp.Violations = append(resp.Violations, violationResponse{
			SensorType:     string(v.SensorType),
			Severity:       string(v.Severity),
			ActualValue:    v.ActualValue,
			ThresholdValue: v.ThresholdValue,
			Message:        v.Message,
			Timestamp:      v.Timestamp,
		})
	}
	return resp
}

// errJSON writes a JSON error body with the given status.
func errJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// pipelineStatus maps pipeline errors to HTTP statuses. Malformed input is
// the caller's fault; a collaborator fault is a server-side problem.
func pipelineStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidReading),
		errors.Is(err, sensor.ErrUnknownSensorType):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func (a *API) postReading(c *fiber.Ctx) error {
	var payload ingest.ReadingPayload
	if err := c.BodyParser(&payload); err != nil {
		return errJSON(c, fiber.StatusBadRequest, err)
	}

	result, err := a.pipe.Ingest(c.UserContext(), payload.ToRaw())
	if err != nil {
		return errJSON(c, pipelineStatus(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(toIngestResponse(result))
}

func (a *API) validateReading(c *fiber.Ctx) error {
	var payload ingest.ReadingPayload
	if err := c.BodyParser(&payload); err != nil {
		return errJSON(c, fiber.StatusBadRequest, err)
	}

	result, err := a.pipe.Check(c.UserContext(), payload.ToRaw())
	if err != nil {
		return errJSON(c, pipelineStatus(err), err)
	}

	return c.JSON(toIngestResponse(result))
}

// parseWindow reads start and end query parameters, defaulting to the last
// 24 hours ending now.
func parseWindow(c *fiber.Ctx) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)

	if s := c.Query("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("start must be RFC 3339")
		}
		start = t
	}
	if s := c.Query("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("end must be RFC 3339")
		}
		end = t
	}
	return start, end, nil
}

func (a *API) readingFilter(c *fiber.Ctx) (store.ReadingFilter, error) {
	start, end, err := parseWindow(c)
	if err != nil {
		return store.ReadingFilter{}, err
	}

	filter := store.ReadingFilter{
		Start:     start,
		End:       end,
		SensorID:  c.Query("sensor_id"),
		StationID: c.Query("station_id"),
	}

	if st := c.Query("sensor_type"); st != "" {
		t := sensor.Type(st)
		if !t.Valid() {
			return store.ReadingFilter{}, sensor.ErrUnknownSensorType
		}
		filter.SensorType = t
	}
	return filter, nil
}

func (a *API) listReadings(c *fiber.Ctx) error {
	filter, err := a.readingFilter(c)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, err)
	}

	readings, err := a.readings.ReadingsInRange(c.UserContext(), filter)
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}

	out := make([]readingResponse, 0, len(readings))
	for _, r := range readings {
		out = append(out, toReadingResponse(r))
	}
	return c.JSON(out)
}

func (a *API) aggregateReadings(c *fiber.Ctx) error {
	filter, err := a.readingFilter(c)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, err)
	}

	width, err := time.ParseDuration(c.Query("bucket", "15m"))
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, errors.New("bucket must be a duration such as 15m or 1h"))
	}

	start := time.Now()
	readings, err := a.readings.ReadingsInRange(c.UserContext(), filter)
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}

	result, err := aggregate.Aggregate(readings, aggregate.Window{Start: filter.Start, End: filter.End}, width)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, err)
	}

	if a.metrics != nil {
		a.metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	}
	return c.JSON(result)
}

// thresholdRequest is the JSON body for creating or updating a threshold.
type thresholdRequest struct {
	SensorType  string   `json:"sensor_type"`
	Severity    string   `json:"severity"`
	MinValue    *float64 `json:"min_value"`
	MaxValue    *float64 `json:"max_value"`
	Active      bool     `json:"active"`
	Description string   `json:"description"`
}

func (r thresholdRequest) toRow() store.ThresholdConfig {
	return store.ThresholdConfig{
		SensorType:  r.SensorType,
		Severity:    r.Severity,
		MinValue:    r.MinValue,
		MaxValue:    r.MaxValue,
		Active:      r.Active,
		Description: r.Description,
	}
}

func (a *API) listThresholds(c *fiber.Ctx) error {
	rows, err := a.thresholds.List(c.UserContext())
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(rows)
}

func (a *API) getThreshold(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return errJSON(c, fiber.StatusBadRequest, errors.New("invalid threshold id"))
	}

	row, err := a.thresholds.Get(c.UserContext(), uint(id))
	if errors.Is(err, store.ErrThresholdNotFound) {
		return errJSON(c, fiber.StatusNotFound, err)
	}
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(row)
}

func (a *API) createThreshold(c *fiber.Ctx) error {
	var req thresholdRequest
	if err := c.BodyParser(&req); err != nil {
		return errJSON(c, fiber.StatusBadRequest, err)
	}

	row := req.toRow()
	if err := a.thresholds.Create(c.UserContext(), &row); err != nil {
		return errJSON(c, thresholdStatus(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(row)
}

func (a *API) updateThreshold(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return errJSON(c, fiber.StatusBadRequest, errors.New("invalid threshold id"))
	}

	var req thresholdRequest
	if err := c.BodyParser(&req); err != nil {
		return errJSON(c, fiber.StatusBadRequest, err)
	}

	row := req.toRow()
	row.ID = uint(id)
	if err := a.thresholds.Update(c.UserContext(), &row); err != nil {
		if errors.Is(err, store.ErrThresholdNotFound) {
			return errJSON(c, fiber.StatusNotFound, err)
		}
		return errJSON(c, thresholdStatus(err), err)
	}
	return c.JSON(row)
}

func (a *API) deleteThreshold(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return errJSON(c, fiber.StatusBadRequest, errors.New("invalid threshold id"))
	}

	if err := a.thresholds.Delete(c.UserContext(), uint(id)); err != nil {
		if errors.Is(err, store.ErrThresholdNotFound) {
			return errJSON(c, fiber.StatusNotFound, err)
		}
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// thresholdStatus distinguishes a validation failure from a storage fault.
func thresholdStatus(err error) int {
	if errors.Is(err, sensor.ErrUnknownSensorType) || errors.Is(err, sensor.ErrInvalidThreshold) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func (a *API) listAlerts(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	filter := store.AlertFilter{
		SensorID:    c.Query("sensor_id"),
		Severity:    c.Query("severity"),
		OnlyUnacked: c.QueryBool("unacked"),
		Limit:       limit,
	}

	rows, err := a.alerts.List(c.UserContext(), filter)
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(rows)
}

func (a *API) ackAlert(c *fiber.Ctx) error {
	eventID := c.Params("event_id")

	err := a.alerts.Acknowledge(c.UserContext(), eventID)
	if errors.Is(err, store.ErrAlertNotFound) {
		return errJSON(c, fiber.StatusNotFound, err)
	}
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(fiber.Map{"acknowledged": eventID})
}

func (a *API) listStations(c *fiber.Ctx) error {
	rows, err := a.stations.List(c.UserContext())
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(rows)
}

func (a *API) getStation(c *fiber.Ctx) error {
	row, err := a.stations.Get(c.UserContext(), c.Params("serial"))
	if errors.Is(err, store.ErrStationNotFound) {
		return errJSON(c, fiber.StatusNotFound, err)
	}
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(row)
}

func (a *API) listStaleSensors(c *fiber.Ctx) error {
	since, err := time.ParseDuration(c.Query("since", "24h"))
	if err != nil || since <= 0 {
		return errJSON(c, fiber.StatusBadRequest, errors.New("since must be a positive duration"))
	}

	rows, err := a.stations.StaleSensors(c.UserContext(), time.Now().UTC().Add(-since))
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(rows)
}

// maintenanceRequest is the JSON body for creating a maintenance schedule.
type maintenanceRequest struct {
	StationSerial string    `json:"station_serial"`
	Title         string    `json:"title"`
	Notes         string    `json:"notes"`
	Recurrence    string    `json:"recurrence"`
	StartDate     time.Time `json:"start_date"`
}

func (a *API) listMaintenance(c *fiber.Ctx) error {
	rows, err := a.maintenance.List(c.UserContext(), c.Query("station"))
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(rows)
}

func (a *API) createMaintenance(c *fiber.Ctx) error {
	var req maintenanceRequest
	if err := c.BodyParser(&req); err != nil {
		return errJSON(c, fiber.StatusBadRequest, err)
	}

	schedule := store.MaintenanceSchedule{
		StationSerial: req.StationSerial,
		Title:         req.Title,
		Notes:         req.Notes,
		Recurrence:    store.Recurrence(req.Recurrence),
		StartDate:     req.StartDate,
		Active:        true,
	}
	if err := a.maintenance.Create(c.UserContext(), &schedule); err != nil {
		return errJSON(c, fiber.StatusBadRequest, err)
	}
	return c.Status(fiber.StatusCreated).JSON(schedule)
}

func (a *API) dueMaintenance(c *fiber.Ctx) error {
	deadline := time.Now().UTC()
	if s := c.Query("before"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return errJSON(c, fiber.StatusBadRequest, errors.New("before must be RFC 3339"))
		}
		deadline = t
	}

	rows, err := a.maintenance.DueBefore(c.UserContext(), deadline)
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(rows)
}

func (a *API) completeMaintenance(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return errJSON(c, fiber.StatusBadRequest, errors.New("invalid schedule id"))
	}

	err = a.maintenance.Complete(c.UserContext(), uint(id), time.Now().UTC())
	if errors.Is(err, store.ErrScheduleNotFound) {
		return errJSON(c, fiber.StatusNotFound, err)
	}
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(fiber.Map{"completed": id})
}

// sensorTypeResponse describes one supported sensor type.
type sensorTypeResponse struct {
	Type       string  `json:"type"`
	Unit       string  `json:"unit"`
	AbsMin     float64 `json:"abs_min"`
	AbsMax     float64 `json:"abs_max"`
	UnusualMin float64 `json:"unusual_min"`
	UnusualMax float64 `json:"unusual_max"`
}

func (a *API) listSensorTypes(c *fiber.Ctx) error {
	types := sensor.Types()
	out := make([]sensorTypeResponse, 0, len(types))
	for _, t := range types {
		r, err := sensor.RangeFor(t)
		if err != nil {
			continue
		}
		out = append(out, sensorTypeResponse{
			Type:       string(t),
			Unit:       r.Unit,
			AbsMin:     r.AbsMin,
			AbsMax:     r.AbsMax,
			UnusualMin: r.UnusualMin,
			UnusualMax: r.UnusualMax,
		})
	}
	return c.JSON(out)
}
