package simulator_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"envmon.dev/envmon/internal/simulator"
	"envmon.dev/envmon/pkg/sensor"
)

var _ = Describe("Fleet", func() {
	Describe("NewStation", func() {
		It("should produce a station with metadata and sensors", func() {
			station, err := simulator.NewStation()
			Expect(err).NotTo(HaveOccurred())
			Expect(station.SerialNumber).NotTo(BeEmpty())
			Expect(station.Name).NotTo(BeEmpty())
			Expect(station.Sensors).NotTo(BeEmpty())

			seen := map[sensor.Type]bool{}
			for _, sn := range station.Sensors {
				Expect(sn.SerialNumber).NotTo(BeEmpty())
				Expect(sn.SensorType.Valid()).To(BeTrue())
				Expect(seen[sn.SensorType]).To(BeFalse())
				seen[sn.SensorType] = true
			}
		})
	})

	Describe("NewFleet", func() {
		It("should respect the size bounds", func() {
			fleet, err := simulator.NewFleet(2, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(fleet)).To(BeNumerically(">=", 2))
			Expect(len(fleet)).To(BeNumerically("<=", 4))
		})

		It("should default a non-positive minimum to one", func() {
			fleet, err := simulator.NewFleet(0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(fleet).To(HaveLen(1))
		})
	})
})

var _ = Describe("Generator", func() {
	It("should reject unknown sensor types", func() {
		_, err := simulator.NewGenerator(sensor.Type("magnetism"))
		Expect(err).To(MatchError(sensor.ErrUnknownSensorType))
	})

	It("should mostly stay inside the absolute range", func() {
		gen, err := simulator.NewGenerator(sensor.TypeTemperature)
		Expect(err).NotTo(HaveOccurred())

		rng, err := sensor.RangeFor(sensor.TypeTemperature)
		Expect(err).NotTo(HaveOccurred())

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		inRange := 0
		const samples = 500
		for i := range samples {
			v := gen.Next(now.Add(time.Duration(i) * time.Minute))
			if v >= rng.AbsMin && v <= rng.AbsMax {
				inRange++
			}
		}

		// Anomaly injection may escape occasionally, but the walk itself
		// pulls back to the baseline.
		Expect(inRange).To(BeNumerically(">", samples*9/10))
	})

	It("should produce readings with simulated or backup provenance", func() {
		station, err := simulator.NewStation()
		Expect(err).NotTo(HaveOccurred())

		now := time.Now().UTC()
		for _, sn := range station.Sensors {
			raw := sn.Reading(station.SerialNumber, now, station.Uptime(now))
			Expect(raw.Provenance).To(BeElementOf(sensor.ProvenanceSimulated, sensor.ProvenanceBackup))
			Expect(raw.StationID).To(Equal(station.SerialNumber))
			Expect(raw.Timestamp).To(Equal(now))
		}
	})
})
