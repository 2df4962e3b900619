package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"envmon.dev/envmon/internal/pipeline"
	"envmon.dev/envmon/pkg/metrics"
)

// ReadingTopic is the MQTT topic filter stations publish readings to. The
// wildcard segment carries the station serial.
const ReadingTopic = "stations/+/readings"

// MQTTSource subscribes to the readings topic and feeds payloads through
// the ingestion pipeline.
type MQTTSource struct {
	logger  *slog.Logger
	pipe    *pipeline.Pipeline
	client  mqtt.Client
	metrics *metrics.PipelineMetrics
	topic   string
}

// MQTTSourceConfig holds the configuration for the MQTTSource.
type MQTTSourceConfig struct {
	Logger    *slog.Logger
	Pipeline  *pipeline.Pipeline
	BrokerURL string
	ClientID  string
	Topic     string
	// Client overrides the MQTT client, used in tests.
	Client mqtt.Client
	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.PipelineMetrics
}

// NewMQTTSource creates a new MQTTSource instance.
func NewMQTTSource(cfg *MQTTSourceConfig) (*MQTTSource, error) {
	if cfg == nil {
		return nil, errors.New("mqtt source config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = ReadingTopic
	}

	client := cfg.Client
	if client == nil {
		if cfg.BrokerURL == "" {
			return nil, errors.New("broker URL cannot be empty")
		}

		opts := mqtt.NewClientOptions().
			AddBroker(cfg.BrokerURL).
			SetClientID(cfg.ClientID).
			SetAutoReconnect(true).
			SetConnectRetry(true)
		client = mqtt.NewClient(opts)
	}

	return &MQTTSource{
		logger:  cfg.Logger,
		pipe:    cfg.Pipeline,
		client:  client,
		metrics: cfg.Metrics,
		topic:   topic,
	}, nil
}

// Start connects to the broker and subscribes to the readings topic.
func (s *MQTTSource) Start(ctx context.Context) error {
	s.logger.Info("starting mqtt source", "topic", s.topic)

	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(ctx, msg.Topic(), msg.Payload())
	}

	if token := s.client.Subscribe(s.topic, 1, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, token.Error())
	}

	s.logger.Info("mqtt source started, waiting for messages")
	return nil
}

// handleMessage ingests one published reading. The station serial from the
// topic wins over any station id inside the payload.
func (s *MQTTSource) handleMessage(ctx context.Context, topic string, payload []byte) {
	start := time.Now()

	raw, err := ParseReading(payload)
	if err != nil {
		s.logger.Error("failed to decode mqtt reading", "topic", topic, "error", err)
		return
	}

	if serial := stationFromTopic(topic); serial != "" {
		raw.StationID = serial
	}

	result, err := s.pipe.Ingest(ctx, raw)
	if err != nil {
		s.logger.Error("failed to ingest mqtt reading",
			"sensor_id", raw.SensorID,
			"error", err,
		)
		return
	}

	if s.metrics != nil {
		s.metrics.IngestDuration.WithLabelValues("mqtt").Observe(time.Since(start).Seconds())
	}

	s.logger.Debug("reading ingested from mqtt",
		"sensor_id", raw.SensorID,
		"violations", len(result.Violations),
	)
}

// stationFromTopic extracts the station serial from stations/<serial>/readings.
func stationFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "stations" || parts[2] != "readings" {
		return ""
	}
	return parts[1]
}

// Stop unsubscribes and disconnects from the broker.
func (s *MQTTSource) Stop() error {
	s.logger.Info("stopping mqtt source")

	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		s.logger.Error("failed to unsubscribe", "error", token.Error())
	}
	s.client.Disconnect(250)

	s.logger.Info("mqtt source stopped")
	return nil
}
