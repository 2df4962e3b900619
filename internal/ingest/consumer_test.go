package ingest_test

import (
	"context"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"envmon.dev/envmon/internal/ingest"
	"envmon.dev/envmon/internal/pipeline"
	"envmon.dev/envmon/pkg/mq/mock"
	"envmon.dev/envmon/pkg/sensor"
)

var _ = Describe("Consumers", func() {
	var (
		log  *slog.Logger
		pipe *pipeline.Pipeline
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))

		var err error
		pipe, err = pipeline.New(&pipeline.Config{
			Logger:     log,
			Store:      &nopStore{},
			Thresholds: &nopThresholds{},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewReadingConsumer", func() {
		It("should reject a nil config", func() {
			_, err := ingest.NewReadingConsumer(nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a missing pipeline", func() {
			_, err := ingest.NewReadingConsumer(&ingest.ReadingConsumerConfig{
				Logger: log,
				Client: mock.NewClient(),
			})
			Expect(err).To(HaveOccurred())
		})

		It("should require connection settings without an injected client", func() {
			_, err := ingest.NewReadingConsumer(&ingest.ReadingConsumerConfig{
				Logger:   log,
				Pipeline: pipe,
			})
			Expect(err).To(HaveOccurred())
		})

		It("should accept an injected client", func() {
			c, err := ingest.NewReadingConsumer(&ingest.ReadingConsumerConfig{
				Logger:   log,
				Pipeline: pipe,
				Client:   mock.NewClient(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(c).NotTo(BeNil())
		})
	})

	Describe("NewMQTTSource", func() {
		It("should reject a nil config", func() {
			_, err := ingest.NewMQTTSource(nil)
			Expect(err).To(HaveOccurred())
		})

		It("should require a broker URL without an injected client", func() {
			_, err := ingest.NewMQTTSource(&ingest.MQTTSourceConfig{
				Logger:   log,
				Pipeline: pipe,
			})
			Expect(err).To(HaveOccurred())
		})
	})
})

type nopStore struct{}

func (nopStore) SaveReading(_ context.Context, _ sensor.ScoredReading) error { return nil }
func (nopStore) RecentReadings(_ context.Context, _ string, _ int) ([]sensor.ScoredReading, error) {
	return nil, nil
}

type nopThresholds struct{}

func (nopThresholds) ActiveThresholds(_ context.Context, _ sensor.Type) ([]sensor.Threshold, error) {
	return nil, nil
}
