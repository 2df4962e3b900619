package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"envmon.dev/envmon/internal/pipeline"
	"envmon.dev/envmon/pkg/metrics"
	"envmon.dev/envmon/pkg/mq"
	"envmon.dev/envmon/pkg/sensor"
)

// ReadingConsumer consumes reading messages from RabbitMQ and feeds them
// through the ingestion pipeline.
type ReadingConsumer struct {
	logger   *slog.Logger
	pipe     *pipeline.Pipeline
	mqClient mq.ClientInterface
	metrics  *metrics.PipelineMetrics
	done     chan struct{}
}

// ReadingConsumerConfig holds the configuration for the ReadingConsumer.
type ReadingConsumerConfig struct {
	Logger      *slog.Logger
	Pipeline    *pipeline.Pipeline
	RabbitMQURL string
	QueueName   string
	// Client overrides the RabbitMQ client, used in tests.
	Client mq.ClientInterface
	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.PipelineMetrics
}

// NewReadingConsumer creates a new ReadingConsumer instance.
func NewReadingConsumer(cfg *ReadingConsumerConfig) (*ReadingConsumer, error) {
	if cfg == nil {
		return nil, errors.New("reading consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}

	mqClient := cfg.Client
	if mqClient == nil {
		if cfg.RabbitMQURL == "" {
			return nil, errors.New("rabbitmq URL cannot be empty")
		}
		if cfg.QueueName == "" {
			return nil, errors.New("queue name cannot be empty")
		}
		mqClient = mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger)
	}

	return &ReadingConsumer{
		logger:   cfg.Logger,
		pipe:     cfg.Pipeline,
		mqClient: mqClient,
		metrics:  cfg.Metrics,
		done:     make(chan struct{}),
	}, nil
}

// Start begins consuming messages from RabbitMQ.
func (c *ReadingConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting reading consumer")

	// Wait for MQ client to be ready
	time.Sleep(2 * time.Second)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("reading consumer started, waiting for messages")

	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages processes incoming messages from the deliveries channel.
func (c *ReadingConsumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping message processing")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				close(c.done)
				return
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery processes a single message delivery. A malformed payload is
// acked away since redelivery cannot fix it; a collaborator fault is nacked
// with requeue so the reading is retried.
func (c *ReadingConsumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	start := time.Now()

	raw, err := ParseReading(delivery.Body)
	if err != nil {
		c.logger.Error("failed to decode reading message", "error", err)
		c.ack(delivery)
		return
	}

	result, err := c.pipe.Ingest(ctx, raw)
	switch {
	case err == nil:
		c.ack(delivery)
		c.observe("amqp", start)
		c.logger.Debug("reading ingested from queue",
			"sensor_id", raw.SensorID,
			"violations", len(result.Violations),
		)

	case errors.Is(err, pipeline.ErrInvalidReading),
		errors.Is(err, sensor.ErrUnknownSensorType):
		c.logger.Error("rejected reading message",
			"sensor_id", raw.SensorID,
			"error", err,
		)
		c.ack(delivery)

	default:
		c.logger.Error("failed to ingest reading, requeueing",
			"sensor_id", raw.SensorID,
			"error", err,
		)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
	}
}

func (c *ReadingConsumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
	}
}

func (c *ReadingConsumer) observe(source string, start time.Time) {
	if c.metrics != nil {
		c.metrics.IngestDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}
}

// Stop stops the consumer and closes the MQ client.
func (c *ReadingConsumer) Stop() error {
	c.logger.Info("stopping reading consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	// Wait for message processing to complete
	<-c.done

	c.logger.Info("reading consumer stopped")
	return nil
}
