package ingest_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"envmon.dev/envmon/internal/ingest"
	"envmon.dev/envmon/pkg/sensor"
)

var _ = Describe("Payloads", func() {
	Describe("ParseReading", func() {
		It("should decode a full reading payload", func() {
			data := []byte(`{
				"sensor_id": "sensor-001",
				"station_id": "station-001",
				"sensor_type": "temperature",
				"value": 22.5,
				"timestamp": "2025-06-01T12:00:00Z",
				"provenance": "real",
				"uptime_ms": 60000
			}`)

			raw, err := ingest.ParseReading(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(raw.SensorID).To(Equal("sensor-001"))
			Expect(raw.StationID).To(Equal("station-001"))
			Expect(raw.SensorType).To(Equal(sensor.TypeTemperature))
			Expect(raw.Value).To(Equal(22.5))
			Expect(raw.Timestamp).To(Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
			Expect(raw.Provenance).To(Equal(sensor.ProvenanceReal))
			Expect(raw.Uptime).To(Equal(time.Minute))
		})

		It("should fail on malformed JSON", func() {
			_, err := ingest.ParseReading([]byte(`{"sensor_id": `))
			Expect(err).To(HaveOccurred())
		})

		It("should pass unknown sensor types through for the pipeline to reject", func() {
			data := []byte(`{"sensor_id":"s","sensor_type":"magnetism","value":1,"timestamp":"2025-06-01T12:00:00Z","provenance":"real"}`)

			raw, err := ingest.ParseReading(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(raw.SensorType.Valid()).To(BeFalse())
		})
	})

	Describe("ParseStation", func() {
		It("should decode a station registration", func() {
			data := []byte(`{
				"serial_number": "station-001",
				"name": "Rooftop North",
				"location": "Building A",
				"latitude": 52.52,
				"longitude": 13.405
			}`)

			p, err := ingest.ParseStation(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.SerialNumber).To(Equal("station-001"))
			Expect(p.Name).To(Equal("Rooftop North"))
			Expect(p.Latitude).To(BeNumerically("~", 52.52, 1e-3))
		})

		It("should reject a registration without a serial number", func() {
			_, err := ingest.ParseStation([]byte(`{"name":"x"}`))
			Expect(err).To(HaveOccurred())
		})

		It("should fail on malformed JSON", func() {
			_, err := ingest.ParseStation([]byte(`nope`))
			Expect(err).To(HaveOccurred())
		})
	})
})
