package store_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"envmon.dev/envmon/internal/store"
)

var _ = Describe("Models", func() {
	Describe("table names", func() {
		It("should map each model to its table", func() {
			Expect(store.Reading{}.TableName()).To(Equal("readings"))
			Expect(store.Station{}.TableName()).To(Equal("stations"))
			Expect(store.Sensor{}.TableName()).To(Equal("sensors"))
			Expect(store.ThresholdConfig{}.TableName()).To(Equal("thresholds"))
			Expect(store.AlertEvent{}.TableName()).To(Equal("alert_events"))
			Expect(store.MaintenanceSchedule{}.TableName()).To(Equal("maintenance_schedules"))
		})
	})

	Describe("Reading", func() {
		It("should allow setting values", func() {
			now := time.Now().UTC()
			reading := store.Reading{
				SensorID:   "sensor-001",
				StationID:  "station-001",
				SensorType: "temperature",
				Value:      22.5,
				Unit:       "°C",
				Quality:    1.0,
				Valid:      true,
				Provenance: "real",
				Timestamp:  now,
			}

			Expect(reading.SensorID).To(Equal("sensor-001"))
			Expect(reading.Value).To(Equal(22.5))
			Expect(reading.Quality).To(Equal(1.0))
			Expect(reading.Valid).To(BeTrue())
			Expect(reading.Timestamp).To(Equal(now))
		})
	})

	Describe("ThresholdConfig", func() {
		It("should hold optional bounds as pointers", func() {
			max := 65.0
			row := store.ThresholdConfig{
				SensorType: "temperature",
				Severity:   "critical",
				MaxValue:   &max,
				Active:     true,
			}

			Expect(row.MinValue).To(BeNil())
			Expect(row.MaxValue).NotTo(BeNil())
			Expect(*row.MaxValue).To(Equal(65.0))
		})
	})
})
