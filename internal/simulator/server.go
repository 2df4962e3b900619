package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"envmon.dev/envmon/internal/ingest"
	"envmon.dev/envmon/pkg/metrics"
	"envmon.dev/envmon/pkg/mq"
)

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// RabbitMQURL is the connection string for RabbitMQ
	RabbitMQURL string
	// ReadingsQueue receives readings when MQTT is not configured
	ReadingsQueue string
	// RegistrationQueue receives station registration messages
	RegistrationQueue string
	// MQTTBrokerURL is the broker readings are published to. Empty means
	// readings go to the RabbitMQ readings queue instead.
	MQTTBrokerURL string
	// Interval is the time between reading batches per station
	Interval time.Duration
	// MinStations and MaxStations bound the fleet size
	MinStations int
	MaxStations int
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SimulatorMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
}

// Server simulates a fleet of stations publishing readings.
type Server struct {
	logger        *slog.Logger
	config        *ServerConfig
	fleet         []*Station
	readingClient *mq.Client
	regClient     *mq.Client
	mqttClient    mqtt.Client
	metrics       *metrics.SimulatorMetrics
	wg            sync.WaitGroup
}

var (
	errIntervalRequired = errors.New("interval must be greater than 0")
	errLoggerRequired   = errors.New("logger is required")
	errTransportNeeded  = errors.New("either an MQTT broker or a readings queue is required")
)

// NewServer creates a simulator server and its synthetic fleet.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("simulator config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.Interval <= 0 {
		return nil, errIntervalRequired
	}

	if cfg.MQTTBrokerURL == "" && (cfg.ReadingsQueue == "" || cfg.RabbitMQURL == "") {
		return nil, errTransportNeeded
	}

	if cfg.RegistrationQueue == "" || cfg.RabbitMQURL == "" {
		return nil, errors.New("registration queue and rabbitmq URL are required")
	}

	fleet, err := NewFleet(cfg.MinStations, cfg.MaxStations)
	if err != nil {
		return nil, fmt.Errorf("failed to build fleet: %w", err)
	}

	s := &Server{
		logger:  cfg.Logger,
		config:  cfg,
		fleet:   fleet,
		metrics: cfg.Metrics,
	}

	s.regClient = mq.New(cfg.RegistrationQueue, cfg.RabbitMQURL, cfg.Logger.With(
		slog.String("component", "registration-mq-client"),
	))
	if cfg.MQMetrics != nil {
		s.regClient.SetMetrics(cfg.MQMetrics)
	}

	if cfg.MQTTBrokerURL != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBrokerURL).
			SetClientID("envmon-simulator").
			SetAutoReconnect(true).
			SetConnectRetry(true)
		s.mqttClient = mqtt.NewClient(opts)
	} else {
		s.readingClient = mq.New(cfg.ReadingsQueue, cfg.RabbitMQURL, cfg.Logger.With(
			slog.String("component", "readings-mq-client"),
		))
		if cfg.MQMetrics != nil {
			s.readingClient.SetMetrics(cfg.MQMetrics)
		}
	}

	s.logger.Info("simulator fleet created", "stations", len(fleet))
	return s, nil
}

// Run registers the fleet, starts one publisher per station, and blocks
// until shutdown.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	if s.mqttClient != nil {
		if token := s.mqttClient.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
		}
	}

	// Queue clients connect in the background; give them a moment before
	// the registration burst.
	time.Sleep(2 * time.Second)

	for _, station := range s.fleet {
		if err := s.registerStation(ctx, station); err != nil {
			s.logger.Error("failed to register station",
				"serial_number", station.SerialNumber,
				"error", err,
			)
		}
	}

	if s.metrics != nil {
		s.metrics.StationsSimulated.Set(float64(len(s.fleet)))
	}

	for _, station := range s.fleet {
		s.wg.Add(1)
		go s.runStation(ctx, station)
	}

	s.logger.Info("simulator started",
		"stations", len(s.fleet),
		"interval", s.config.Interval,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.logger.Info("waiting for stations to shut down...")
	s.wg.Wait()

	if s.metrics != nil {
		s.metrics.StationsSimulated.Set(0)
	}

	s.close()
	s.logger.Info("simulator stopped")
	return nil
}

// registerStation publishes the station's registration message.
func (s *Server) registerStation(ctx context.Context, station *Station) error {
	payload := ingest.StationPayload{
		SerialNumber: station.SerialNumber,
		Name:         station.Name,
		Location:     station.Location,
		Latitude:     float32(station.Latitude),
		Longitude:    float32(station.Longitude),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal registration: %w", err)
	}

	pushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.regClient.Push(pushCtx, data); err != nil {
		s.countFailure("amqp", "registration")
		return fmt.Errorf("failed to publish registration: %w", err)
	}

	s.logger.Info("station registered",
		"serial_number", station.SerialNumber,
		"sensors", len(station.Sensors),
	)
	return nil
}

// runStation publishes one batch of readings per tick for every sensor of
// the station.
func (s *Server) runStation(ctx context.Context, station *Station) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	stationLogger := s.logger.With(slog.String("station", station.SerialNumber))
	stationLogger.Info("station publisher started")

	for {
		select {
		case <-ctx.Done():
			stationLogger.Info("station publisher shutting down")
			return

		case now := <-ticker.C:
			for _, sn := range station.Sensors {
				if err := s.publishReading(ctx, station, sn, now.UTC()); err != nil {
					stationLogger.Error("failed to publish reading",
						"sensor_id", sn.SerialNumber,
						"error", err,
					)
					// Continue on error - don't stop the station
					continue
				}
			}
			stationLogger.Debug("reading batch published", "sensors", len(station.Sensors))
		}
	}
}

// publishReading generates and publishes one reading.
func (s *Server) publishReading(ctx context.Context, station *Station, sn *Sensor, now time.Time) error {
	start := time.Now()

	raw := sn.Reading(station.SerialNumber, now, station.Uptime(now))
	payload := ingest.ReadingPayload{
		SensorID:   raw.SensorID,
		StationID:  raw.StationID,
		SensorType: string(raw.SensorType),
		Value:      raw.Value,
		Timestamp:  raw.Timestamp,
		Provenance: string(raw.Provenance),
		UptimeMS:   raw.Uptime.Milliseconds(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	if s.mqttClient != nil {
		topic := fmt.Sprintf("stations/%s/readings", station.SerialNumber)
		if token := s.mqttClient.Publish(topic, 1, false, data); token.Wait() && token.Error() != nil {
			s.countFailure("mqtt", "publish")
			return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
		}
	} else {
		pushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := s.readingClient.Push(pushCtx, data); err != nil {
			s.countFailure("amqp", "push")
			return fmt.Errorf("failed to push reading: %w", err)
		}
	}

	if s.metrics != nil {
		s.metrics.ReadingsGenerated.WithLabelValues(string(raw.SensorType), string(raw.Provenance)).Inc()
		s.metrics.GenerationDuration.WithLabelValues(string(raw.SensorType)).Observe(time.Since(start).Seconds())
	}
	return nil
}

func (s *Server) countFailure(transport, reason string) {
	if s.metrics != nil {
		s.metrics.PublishFailures.WithLabelValues(transport, reason).Inc()
	}
}

// close shuts down all transports.
func (s *Server) close() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect(250)
	}

	if s.readingClient != nil {
		if err := s.readingClient.Close(); err != nil && !errors.Is(err, mq.ErrAlreadyClosed) {
			s.logger.Error("failed to close readings client", "error", err)
		}
	}

	if err := s.regClient.Close(); err != nil && !errors.Is(err, mq.ErrAlreadyClosed) {
		s.logger.Error("failed to close registration client", "error", err)
	}
}
