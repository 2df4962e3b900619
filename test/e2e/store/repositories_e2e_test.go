package store_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"envmon.dev/envmon/internal/store"
	"envmon.dev/envmon/pkg/sensor"
)

func scored(sensorID string, value float64, ts time.Time) sensor.ScoredReading {
	return sensor.ScoredReading{
		RawReading: sensor.RawReading{
			SensorID:   sensorID,
			StationID:  "station-e2e",
			SensorType: sensor.TypeTemperature,
			Value:      value,
			Timestamp:  ts,
			Provenance: sensor.ProvenanceReal,
			Uptime:     time.Minute,
		},
		Quality: 1.0,
		Unit:    "°C",
		Valid:   true,
	}
}

var _ = Describe("Repositories E2E", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("ReadingRepo", func() {
		It("should save readings and serve history most recent first", func() {
			repo, err := store.NewReadingRepo(db, testLogger)
			Expect(err).NotTo(HaveOccurred())

			sensorID := fmt.Sprintf("sensor-hist-%d", time.Now().UnixNano())
			base := time.Now().UTC().Truncate(time.Second)

			for i, v := range []float64{20.0, 21.0, 22.0} {
				Expect(repo.SaveReading(ctx, scored(sensorID, v, base.Add(time.Duration(i)*time.Minute)))).To(Succeed())
			}

			recent, err := repo.RecentReadings(ctx, sensorID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(recent).To(HaveLen(2))
			Expect(recent[0].Value).To(Equal(22.0))
			Expect(recent[1].Value).To(Equal(21.0))
		})

		It("should filter range queries by sensor and order ascending", func() {
			repo, err := store.NewReadingRepo(db, testLogger)
			Expect(err).NotTo(HaveOccurred())

			sensorID := fmt.Sprintf("sensor-range-%d", time.Now().UnixNano())
			base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)

			for i := range 4 {
				Expect(repo.SaveReading(ctx, scored(sensorID, float64(10+i), base.Add(time.Duration(i*10)*time.Minute)))).To(Succeed())
			}

			rows, err := repo.ReadingsInRange(ctx, store.ReadingFilter{
				Start:    base,
				End:      base.Add(25 * time.Minute),
				SensorID: sensorID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0].Value).To(Equal(10.0))
			Expect(rows[2].Value).To(Equal(12.0))
		})
	})

	Describe("ThresholdRepo", func() {
		It("should hand out snapshots unaffected by later edits", func() {
			repo, err := store.NewThresholdRepo(db, testLogger)
			Expect(err).NotTo(HaveOccurred())

			max := 65.0
			row := store.ThresholdConfig{
				SensorType: "pressure",
				Severity:   "critical",
				MaxValue:   &max,
				Active:     true,
			}
			Expect(repo.Create(ctx, &row)).To(Succeed())

			snapshot, err := repo.ActiveThresholds(ctx, sensor.TypePressure)
			Expect(err).NotTo(HaveOccurred())
			Expect(snapshot).NotTo(BeEmpty())

			before := *snapshot[0].MaxValue

			row.MaxValue = ptr(80.0)
			Expect(repo.Update(ctx, &row)).To(Succeed())

			Expect(*snapshot[0].MaxValue).To(Equal(before))

			Expect(repo.Delete(ctx, row.ID)).To(Succeed())
		})

		It("should reject invalid thresholds", func() {
			repo, err := store.NewThresholdRepo(db, testLogger)
			Expect(err).NotTo(HaveOccurred())

			row := store.ThresholdConfig{
				SensorType: "temperature",
				Severity:   "critical",
				Active:     true,
			}
			Expect(repo.Create(ctx, &row)).To(MatchError(sensor.ErrInvalidThreshold))
		})
	})

	Describe("AlertRepo", func() {
		It("should record and acknowledge alerts", func() {
			repo, err := store.NewAlertRepo(db, testLogger)
			Expect(err).NotTo(HaveOccurred())

			sensorID := fmt.Sprintf("sensor-alert-%d", time.Now().UnixNano())
			reading := scored(sensorID, 70.0, time.Now().UTC())
			violations := []sensor.Violation{{
				SensorType:     sensor.TypeTemperature,
				Severity:       sensor.SeverityCritical,
				ActualValue:    70.0,
				ThresholdValue: 65.0,
				Message:        "temperature reading 70.00 °C is above the critical maximum bound of 65.00 °C",
				Timestamp:      reading.Timestamp,
			}}

			Expect(repo.Record(ctx, reading, violations)).To(Succeed())

			rows, err := repo.List(ctx, store.AlertFilter{SensorID: sensorID})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].EventID).NotTo(BeEmpty())
			Expect(rows[0].Acknowledged).To(BeFalse())

			Expect(repo.Acknowledge(ctx, rows[0].EventID)).To(Succeed())

			rows, err = repo.List(ctx, store.AlertFilter{SensorID: sensorID, OnlyUnacked: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})

		It("should report unknown event IDs", func() {
			repo, err := store.NewAlertRepo(db, testLogger)
			Expect(err).NotTo(HaveOccurred())

			Expect(repo.Acknowledge(ctx, "no-such-event")).To(MatchError(store.ErrAlertNotFound))
		})
	})

	Describe("StationRepo", func() {
		It("should upsert registrations and bump last seen on readings", func() {
			repo, err := store.NewStationRepo(db, testLogger)
			Expect(err).NotTo(HaveOccurred())

			serial := fmt.Sprintf("station-%d", time.Now().UnixNano())
			station := store.Station{
				SerialNumber: serial,
				Name:         "Rooftop North",
				Location:     "Building A",
			}
			Expect(repo.Register(ctx, &station)).To(Succeed())

			// Re-registration updates metadata in place
			station2 := store.Station{
				SerialNumber: serial,
				Name:         "Rooftop North (renamed)",
				Location:     "Building A",
			}
			Expect(repo.Register(ctx, &station2)).To(Succeed())

			seen := time.Now().UTC().Truncate(time.Second)
			Expect(repo.TouchSensor(ctx, serial+"-s01", serial, sensor.TypeTemperature, seen)).To(Succeed())

			got, err := repo.Get(ctx, serial)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Rooftop North (renamed)"))
			Expect(got.Sensors).To(HaveLen(1))
			Expect(got.LastSeen.Unix()).To(Equal(seen.Unix()))
		})
	})

	Describe("MaintenanceRepo", func() {
		It("should track yearly schedules through completion", func() {
			repo, err := store.NewMaintenanceRepo(db, testLogger)
			Expect(err).NotTo(HaveOccurred())

			serial := fmt.Sprintf("station-maint-%d", time.Now().UnixNano())
			start := time.Now().UTC().AddDate(0, 0, -1).Truncate(time.Second)
			schedule := store.MaintenanceSchedule{
				StationSerial: serial,
				Title:         "annual calibration",
				Recurrence:    store.RecurYearly,
				StartDate:     start,
				Active:        true,
			}
			Expect(repo.Create(ctx, &schedule)).To(Succeed())

			due, err := repo.DueBefore(ctx, time.Now().UTC())
			Expect(err).NotTo(HaveOccurred())
			Expect(due).To(ContainElement(HaveField("StationSerial", serial)))

			Expect(repo.Complete(ctx, schedule.ID, time.Now().UTC())).To(Succeed())

			// Next occurrence is a calendar year out
			due, err = repo.DueBefore(ctx, time.Now().UTC().AddDate(0, 6, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(due).NotTo(ContainElement(HaveField("StationSerial", serial)))
		})
	})
})

func ptr(v float64) *float64 { return &v }
