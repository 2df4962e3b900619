// Package mq provides end-to-end tests for the RabbitMQ client.
package mq

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"envmon.dev/envmon/internal/ingest"
	clientmq "envmon.dev/envmon/pkg/mq"
)

var _ = Describe("MQ Client E2E", func() {
	var (
		client    *clientmq.Client
		queueName string
	)

	BeforeEach(func() {
		// Unique queue per test
		queueName = "test-queue-" + time.Now().Format("20060102-150405.000")
	})

	AfterEach(func() {
		if client != nil {
			_ = client.Close()
			client = nil
		}
	})

	Describe("Connection", func() {
		It("should connect to RabbitMQ successfully", func() {
			client = clientmq.New(queueName, rabbitmqURL, testLogger)
			Expect(client).NotTo(BeNil())

			// Give client time to connect
			time.Sleep(1 * time.Second)
		})

		It("should handle invalid URL gracefully", func() {
			invalidClient := clientmq.New("test-queue", "amqp://invalid:5672", testLogger)
			Expect(invalidClient).NotTo(BeNil())

			// Should not crash, will keep retrying in background
			time.Sleep(500 * time.Millisecond)

			_ = invalidClient.Close()
		})
	})

	Describe("Publishing and consuming", func() {
		BeforeEach(func() {
			client = clientmq.New(queueName, rabbitmqURL, testLogger)
			time.Sleep(2 * time.Second) // Wait for connection
		})

		It("should publish a reading payload successfully", func() {
			payload := ingest.ReadingPayload{
				SensorID:   "sensor-e2e-001",
				StationID:  "station-e2e-001",
				SensorType: "temperature",
				Value:      22.5,
				Timestamp:  time.Now().UTC(),
				Provenance: "real",
				UptimeMS:   60000,
			}
			data, err := json.Marshal(payload)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			Expect(client.Push(ctx, data)).To(Succeed())
		})

		It("should round-trip a message through the queue", func() {
			deliveries, err := client.Consume()
			Expect(err).NotTo(HaveOccurred())

			payload := ingest.ReadingPayload{
				SensorID:   "sensor-e2e-002",
				SensorType: "humidity",
				Value:      61.2,
				Timestamp:  time.Now().UTC(),
				Provenance: "real",
			}
			data, err := json.Marshal(payload)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			Expect(client.Push(ctx, data)).To(Succeed())

			select {
			case delivery := <-deliveries:
				raw, err := ingest.ParseReading(delivery.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(raw.SensorID).To(Equal("sensor-e2e-002"))
				Expect(raw.Value).To(Equal(61.2))
				Expect(delivery.Ack(false)).To(Succeed())
			case <-time.After(10 * time.Second):
				Fail("timed out waiting for delivery")
			}
		})

		It("should fail Push once the context expires while disconnected", func() {
			disconnected := clientmq.New("test-queue-down", "amqp://invalid:5672", testLogger)
			defer func() { _ = disconnected.Close() }()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			err := disconnected.Push(ctx, []byte("payload"))
			Expect(err).To(HaveOccurred())
		})
	})
})
