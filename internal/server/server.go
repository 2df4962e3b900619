package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"envmon.dev/envmon/internal/ingest"
	"envmon.dev/envmon/internal/notify"
	"envmon.dev/envmon/internal/pipeline"
	"envmon.dev/envmon/internal/store"
	"envmon.dev/envmon/pkg/metrics"
	"envmon.dev/envmon/pkg/mq"
)

// Server runs the monitoring service: database, queue consumers, MQTT
// source, HTTP API, and the metrics endpoint.
type Server struct {
	logger      *slog.Logger
	config      *Config
	db          *gorm.DB
	app         *fiber.App
	metricsrv   *http.Server
	consumer    *ingest.ReadingConsumer
	regConsumer *ingest.RegistrationConsumer
	mqttSource  *ingest.MQTTSource
	alertClient *mq.Client
}

// Config holds the configuration for the Server.
type Config struct {
	Logger *slog.Logger

	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPort     int

	// RabbitMQ configuration
	RabbitMQURL       string
	ReadingsQueue     string
	RegistrationQueue string
	AlertsQueue       string

	// MQTT configuration. Empty broker URL disables the MQTT source.
	MQTTBrokerURL string
	MQTTClientID  string

	// HTTP configuration
	HTTPPort    int
	MetricsPort int

	// HistoryDepth is how many recent readings feed jump detection.
	HistoryDepth int
}

// New creates a new Server instance.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.ReadingsQueue == "" || cfg.RegistrationQueue == "" || cfg.AlertsQueue == "" {
		return nil, errors.New("queue names cannot be empty")
	}

	if cfg.DBHost == "" {
		return nil, errors.New("database host cannot be empty")
	}

	if cfg.DBPort <= 0 {
		return nil, errors.New("database port must be positive")
	}

	if cfg.DBUser == "" {
		return nil, errors.New("database user cannot be empty")
	}

	if cfg.DBName == "" {
		return nil, errors.New("database name cannot be empty")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("http port must be positive")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting monitoring server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	db, err := store.NewDB(&store.DBConfig{
		Logger:   s.logger,
		Host:     s.config.DBHost,
		Port:     s.config.DBPort,
		User:     s.config.DBUser,
		Password: s.config.DBPassword,
		DBName:   s.config.DBName,
		SSLMode:  s.config.DBSSLMode,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	readings, err := store.NewReadingRepo(db, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize reading repo: %w", err)
	}
	thresholds, err := store.NewThresholdRepo(db, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize threshold repo: %w", err)
	}
	alerts, err := store.NewAlertRepo(db, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize alert repo: %w", err)
	}
	stations, err := store.NewStationRepo(db, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize station repo: %w", err)
	}
	maintenance, err := store.NewMaintenanceRepo(db, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize maintenance repo: %w", err)
	}

	// Alerts are recorded in the database and fanned out to the queue.
	s.alertClient = mq.New(s.config.AlertsQueue, s.config.RabbitMQURL, s.logger)
	s.alertClient.SetMetrics(metrics.NewMQMetrics(metrics.Namespace))

	storeSink, err := notify.NewStoreSink(alerts)
	if err != nil {
		return fmt.Errorf("failed to initialize store sink: %w", err)
	}
	queueSink, err := notify.NewQueueSink(s.alertClient, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize queue sink: %w", err)
	}

	pipelineMetrics := metrics.NewPipelineMetrics(metrics.Namespace)
	pipe, err := pipeline.New(&pipeline.Config{
		Logger:       s.logger,
		Store:        readings,
		Thresholds:   thresholds,
		Alerts:       notify.NewFanout(storeSink, queueSink),
		Registry:     stations,
		HistoryDepth: s.config.HistoryDepth,
		Metrics:      pipelineMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	s.consumer, err = ingest.NewReadingConsumer(&ingest.ReadingConsumerConfig{
		Logger:      s.logger,
		Pipeline:    pipe,
		RabbitMQURL: s.config.RabbitMQURL,
		QueueName:   s.config.ReadingsQueue,
		Metrics:     pipelineMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize reading consumer: %w", err)
	}
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reading consumer: %w", err)
	}

	s.regConsumer, err = ingest.NewRegistrationConsumer(&ingest.RegistrationConsumerConfig{
		Logger:      s.logger,
		Stations:    stations,
		RabbitMQURL: s.config.RabbitMQURL,
		QueueName:   s.config.RegistrationQueue,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize registration consumer: %w", err)
	}
	if err := s.regConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start registration consumer: %w", err)
	}

	if s.config.MQTTBrokerURL != "" {
		s.mqttSource, err = ingest.NewMQTTSource(&ingest.MQTTSourceConfig{
			Logger:    s.logger,
			Pipeline:  pipe,
			BrokerURL: s.config.MQTTBrokerURL,
			ClientID:  s.config.MQTTClientID,
			Metrics:   pipelineMetrics,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize mqtt source: %w", err)
		}
		if err := s.mqttSource.Start(ctx); err != nil {
			return fmt.Errorf("failed to start mqtt source: %w", err)
		}
	}

	api, err := NewAPI(&APIConfig{
		Logger:      s.logger,
		Pipeline:    pipe,
		Readings:    readings,
		Thresholds:  thresholds,
		Alerts:      alerts,
		Stations:    stations,
		Maintenance: maintenance,
		Metrics:     metrics.NewAPIMetrics(metrics.Namespace),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize api: %w", err)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "envmon",
		DisableStartupMessage: true,
	})
	api.Register(s.app)

	httpErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", s.config.HTTPPort)
		s.logger.Info("starting http server", "address", addr)
		if err := s.app.Listen(addr); err != nil {
			httpErr <- fmt.Errorf("http server error: %w", err)
		}
		close(httpErr)
	}()

	if s.config.MetricsPort > 0 {
		s.startMetricsServer()
	}

	s.logger.Info("monitoring server started successfully")

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("http server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// startMetricsServer serves Prometheus metrics on its own listener.
func (s *Server) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	s.metricsrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("starting metrics server", "address", s.metricsrv.Addr)
		if err := s.metricsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down monitoring server")

	var shutdownErr error

	if s.app != nil {
		s.logger.Info("stopping http server")
		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			s.logger.Error("failed to stop http server", "error", err)
			shutdownErr = fmt.Errorf("http shutdown error: %w", err)
		}
	}

	if s.metricsrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metricsrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to stop metrics server", "error", err)
			shutdownErr = joinShutdownErr(shutdownErr, fmt.Errorf("metrics shutdown error: %w", err))
		}
		cancel()
	}

	if s.mqttSource != nil {
		if err := s.mqttSource.Stop(); err != nil {
			s.logger.Error("failed to stop mqtt source", "error", err)
			shutdownErr = joinShutdownErr(shutdownErr, fmt.Errorf("mqtt shutdown error: %w", err))
		}
	}

	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop reading consumer", "error", err)
			shutdownErr = joinShutdownErr(shutdownErr, fmt.Errorf("consumer shutdown error: %w", err))
		}
	}

	if s.regConsumer != nil {
		if err := s.regConsumer.Stop(); err != nil {
			s.logger.Error("failed to stop registration consumer", "error", err)
			shutdownErr = joinShutdownErr(shutdownErr, fmt.Errorf("registration consumer shutdown error: %w", err))
		}
	}

	if s.alertClient != nil {
		if err := s.alertClient.Close(); err != nil && !errors.Is(err, mq.ErrAlreadyClosed) {
			s.logger.Error("failed to close alert client", "error", err)
			shutdownErr = joinShutdownErr(shutdownErr, fmt.Errorf("alert client close error: %w", err))
		}
	}

	if s.db != nil {
		if err := store.CloseDB(s.db, s.logger); err != nil {
			s.logger.Error("failed to close database", "error", err)
			shutdownErr = joinShutdownErr(shutdownErr, fmt.Errorf("database close error: %w", err))
		}
	}

	if shutdownErr != nil {
		s.logger.Error("monitoring server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("monitoring server shutdown completed")
	return nil
}

func joinShutdownErr(existing, next error) error {
	if existing == nil {
		return next
	}
	return errors.Join(existing, next)
}
