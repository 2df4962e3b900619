package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"envmon.dev/envmon/internal/notify"
	"envmon.dev/envmon/pkg/mq/mock"
	"envmon.dev/envmon/pkg/sensor"
)

type recordingSink struct {
	calls int
	err   error
}

func (r *recordingSink) Notify(_ context.Context, _ sensor.ScoredReading, _ []sensor.Violation) error {
	r.calls++
	return r.err
}

var _ = Describe("Notify", func() {
	var (
		log     *slog.Logger
		reading sensor.ScoredReading
		vs      []sensor.Violation
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		now := time.Now().UTC()
		reading = sensor.ScoredReading{
			RawReading: sensor.RawReading{
				SensorID:   "sensor-001",
				StationID:  "station-001",
				SensorType: sensor.TypeTemperature,
				Value:      70.0,
				Timestamp:  now,
				Provenance: sensor.ProvenanceReal,
			},
			Quality: 1.0,
			Unit:    "°C",
			Valid:   true,
		}
		vs = []sensor.Violation{{
			SensorType:     sensor.TypeTemperature,
			Severity:       sensor.SeverityCritical,
			ActualValue:    70.0,
			ThresholdValue: 65.0,
			Message:        "temperature reading 70.00 °C is above the critical maximum bound of 65.00 °C",
			Timestamp:      now,
		}}
	})

	Describe("QueueSink", func() {
		It("should reject a nil client", func() {
			_, err := notify.NewQueueSink(nil, log)
			Expect(err).To(HaveOccurred())
		})

		It("should publish one JSON message per notification", func() {
			client := mock.NewClient()
			sink, err := notify.NewQueueSink(client, log)
			Expect(err).NotTo(HaveOccurred())

			Expect(sink.Notify(context.Background(), reading, vs)).To(Succeed())
			Expect(client.Pushed()).To(HaveLen(1))

			var msg notify.AlertMessage
			Expect(json.Unmarshal(client.Pushed()[0], &msg)).To(Succeed())
			Expect(msg.SensorID).To(Equal("sensor-001"))
			Expect(msg.SensorType).To(Equal("temperature"))
			Expect(msg.Violations).To(HaveLen(1))
			Expect(msg.Violations[0].Severity).To(Equal("critical"))
			Expect(msg.Violations[0].ThresholdValue).To(Equal(65.0))
		})

		It("should publish nothing when there are no violations", func() {
			client := mock.NewClient()
			sink, err := notify.NewQueueSink(client, log)
			Expect(err).NotTo(HaveOccurred())

			Expect(sink.Notify(context.Background(), reading, nil)).To(Succeed())
			Expect(client.Pushed()).To(BeEmpty())
		})

		It("should surface a push failure", func() {
			client := mock.NewClient()
			client.PushError = errors.New("not connected")
			sink, err := notify.NewQueueSink(client, log)
			Expect(err).NotTo(HaveOccurred())

			err = sink.Notify(context.Background(), reading, vs)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, client.PushError)).To(BeTrue())
		})
	})

	Describe("Fanout", func() {
		It("should deliver to every sink", func() {
			a := &recordingSink{}
			b := &recordingSink{}
			f := notify.NewFanout(a, b)

			Expect(f.Notify(context.Background(), reading, vs)).To(Succeed())
			Expect(a.calls).To(Equal(1))
			Expect(b.calls).To(Equal(1))
		})

		It("should keep delivering past a failing sink and join the errors", func() {
			a := &recordingSink{err: errors.New("db down")}
			b := &recordingSink{}
			f := notify.NewFanout(a, b)

			err := f.Notify(context.Background(), reading, vs)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, a.err)).To(BeTrue())
			Expect(b.calls).To(Equal(1))
		})

		It("should skip nil sinks", func() {
			a := &recordingSink{}
			f := notify.NewFanout(nil, a)

			Expect(f.Notify(context.Background(), reading, vs)).To(Succeed())
			Expect(a.calls).To(Equal(1))
		})
	})
})
