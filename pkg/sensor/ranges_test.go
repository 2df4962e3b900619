package sensor_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"envmon.dev/envmon/pkg/sensor"
)

var _ = Describe("Ranges", func() {
	Describe("RangeFor", func() {
		It("should return a range for every enumerated type", func() {
			for _, t := range sensor.Types() {
				r, err := sensor.RangeFor(t)
				Expect(err).NotTo(HaveOccurred(), "type %s", t)
				Expect(r.Unit).NotTo(BeEmpty(), "type %s", t)
				Expect(r.AbsMin).To(BeNumerically("<", r.AbsMax), "type %s", t)
				Expect(r.UnusualMin).To(BeNumerically(">=", r.AbsMin), "type %s", t)
				Expect(r.UnusualMax).To(BeNumerically("<=", r.AbsMax), "type %s", t)
				Expect(r.ModerateJump).To(BeNumerically("<", r.LargeJump), "type %s", t)
			}
		})

		It("should return the canonical temperature range", func() {
			r, err := sensor.RangeFor(sensor.TypeTemperature)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.AbsMin).To(Equal(-50.0))
			Expect(r.AbsMax).To(Equal(150.0))
			Expect(r.UnusualMin).To(Equal(-10.0))
			Expect(r.UnusualMax).To(Equal(100.0))
			Expect(r.Unit).To(Equal("°C"))
		})

		It("should fail for an unknown type", func() {
			_, err := sensor.RangeFor(sensor.Type("radiation"))
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, sensor.ErrUnknownSensorType)).To(BeTrue())
		})

		It("should fail for an empty type", func() {
			_, err := sensor.RangeFor(sensor.Type(""))
			Expect(errors.Is(err, sensor.ErrUnknownSensorType)).To(BeTrue())
		})
	})

	Describe("UnitFor", func() {
		It("should return the unit for a known type", func() {
			unit, err := sensor.UnitFor(sensor.TypeCO2)
			Expect(err).NotTo(HaveOccurred())
			Expect(unit).To(Equal("ppm"))
		})

		It("should propagate the unknown type error", func() {
			_, err := sensor.UnitFor(sensor.Type("bogus"))
			Expect(errors.Is(err, sensor.ErrUnknownSensorType)).To(BeTrue())
		})
	})

	Describe("Type", func() {
		It("should report validity against the closed enumeration", func() {
			Expect(sensor.TypeHumidity.Valid()).To(BeTrue())
			Expect(sensor.Type("voltage").Valid()).To(BeFalse())
		})
	})
})
