package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"envmon.dev/envmon/internal/store"
	"envmon.dev/envmon/pkg/mq"
)

// RegistrationConsumer consumes station registration messages from RabbitMQ
// and upserts the station registry.
type RegistrationConsumer struct {
	logger   *slog.Logger
	stations *store.StationRepo
	mqClient mq.ClientInterface
	done     chan struct{}
}

// RegistrationConsumerConfig holds the configuration for the RegistrationConsumer.
type RegistrationConsumerConfig struct {
	Logger      *slog.Logger
	Stations    *store.StationRepo
	RabbitMQURL string
	QueueName   string
	// Client overrides the RabbitMQ client, used in tests.
	Client mq.ClientInterface
}

// NewRegistrationConsumer creates a new RegistrationConsumer instance.
func NewRegistrationConsumer(cfg *RegistrationConsumerConfig) (*RegistrationConsumer, error) {
	if cfg == nil {
		return nil, errors.New("registration consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Stations == nil {
		return nil, errors.New("station repo cannot be nil")
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

	return &RegistrationConsumer{
		logger:   cfg.Logger,
		stations: cfg.Stations,
		mqClient: mqClient,
		done:     make(chan struct{}),
	}, nil
}

// Start begins consuming registration messages from RabbitMQ.
func (c *RegistrationConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting registration consumer")

	// Wait for MQ client to be ready
	time.Sleep(2 * time.Second)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("registration consumer started, waiting for messages")

	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages processes incoming registration messages.
func (c *RegistrationConsumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping registration processing")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("registration deliveries channel closed")
				close(c.done)
				return
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery processes a single registration delivery.
func (c *RegistrationConsumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	payload, err := ParseStation(delivery.Body)
	if err != nil {
		c.logger.Error("failed to decode station message", "error", err)
		// Ack malformed messages, redelivery cannot fix them
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	station := store.Station{
		SerialNumber: payload.SerialNumber,
		Name:         payload.Name,
		Location:     payload.Location,
		Latitude:     payload.Latitude,
		Longitude:    payload.Longitude,
	}

	if err := c.stations.Register(ctx, &station); err != nil {
		c.logger.Error("failed to register station",
			"serial_number", payload.SerialNumber,
			"error", err,
		)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
		return
	}

	c.logger.Debug("station registered from queue",
		"serial_number", payload.SerialNumber,
	)
}

// Stop stops the registration consumer and closes the MQ client.
func (c *RegistrationConsumer) Stop() error {
	c.logger.Info("stopping registration consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	<-c.done

	c.logger.Info("registration consumer stopped")
	return nil
}
