package sensor_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"envmon.dev/envmon/pkg/sensor"
)

func ptr(v float64) *float64 { return &v }

var _ = Describe("Types", func() {
	Describe("Severity", func() {
		It("should rank severities in ascending urgency", func() {
			Expect(sensor.SeverityLow.Rank()).To(BeNumerically("<", sensor.SeverityMedium.Rank()))
			Expect(sensor.SeverityMedium.Rank()).To(BeNumerically("<", sensor.SeverityHigh.Rank()))
			Expect(sensor.SeverityHigh.Rank()).To(BeNumerically("<", sensor.SeverityCritical.Rank()))
		})

		It("should rank unknown severities below low", func() {
			Expect(sensor.Severity("urgent").Rank()).To(BeZero())
			Expect(sensor.Severity("urgent").Valid()).To(BeFalse())
		})
	})

	Describe("Provenance", func() {
		It("should accept the three known tags", func() {
			Expect(sensor.ProvenanceReal.Valid()).To(BeTrue())
			Expect(sensor.ProvenanceSimulated.Valid()).To(BeTrue())
			Expect(sensor.ProvenanceBackup.Valid()).To(BeTrue())
		})

		It("should reject anything else", func() {
			Expect(sensor.Provenance("cached").Valid()).To(BeFalse())
			Expect(sensor.Provenance("").Valid()).To(BeFalse())
		})
	})

	Describe("Threshold validation", func() {
		It("should accept a threshold with both bounds ordered", func() {
			t := sensor.Threshold{
				SensorType: sensor.TypeTemperature,
				Severity:   sensor.SeverityHigh,
				MinValue:   ptr(-5),
				MaxValue:   ptr(35),
				Active:     true,
			}
			Expect(t.Validate()).To(Succeed())
		})

		It("should accept a threshold with only one bound", func() {
			t := sensor.Threshold{
				SensorType: sensor.TypeCO2,
				Severity:   sensor.SeverityCritical,
				MaxValue:   ptr(2000),
			}
			Expect(t.Validate()).To(Succeed())
		})

		It("should reject a threshold with no bounds", func() {
			t := sensor.Threshold{
				SensorType: sensor.TypeHumidity,
				Severity:   sensor.SeverityLow,
			}
			Expect(t.Validate()).To(HaveOccurred())
		})

		It("should reject min >= max", func() {
			t := sensor.Threshold{
				SensorType: sensor.TypeHumidity,
				Severity:   sensor.SeverityLow,
				MinValue:   ptr(80),
				MaxValue:   ptr(20),
			}
			Expect(t.Validate()).To(HaveOccurred())

			t.MinValue = ptr(20)
			t.MaxValue = ptr(20)
			Expect(t.Validate()).To(HaveOccurred())
		})

		It("should reject an unknown sensor type", func() {
			t := sensor.Threshold{
				SensorType: sensor.Type("voltage"),
				Severity:   sensor.SeverityLow,
				MaxValue:   ptr(10),
			}
			Expect(t.Validate()).To(MatchError(sensor.ErrUnknownSensorType))
		})

		It("should reject an unknown severity", func() {
			t := sensor.Threshold{
				SensorType: sensor.TypePH,
				Severity:   sensor.Severity("severe"),
				MaxValue:   ptr(10),
			}
			Expect(t.Validate()).To(HaveOccurred())
		})
	})
})
