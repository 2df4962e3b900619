package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"envmon.dev/envmon/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the monitoring server",
	Long: `Run the monitoring server that:
- Consumes readings from RabbitMQ and MQTT
- Scores reading quality and evaluates thresholds
- Persists readings, alerts, and the station registry to PostgreSQL
- Serves the HTTP API and Prometheus metrics`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	serverCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	serverCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	serverCmd.Flags().String("db-password", "", "PostgreSQL password")
	serverCmd.Flags().String("db-name", "envmon", "PostgreSQL database name")
	serverCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	serverCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	serverCmd.Flags().String("readings-queue", "readings", "RabbitMQ queue for sensor readings")
	serverCmd.Flags().String("registration-queue", "registrations", "RabbitMQ queue for station registrations")
	serverCmd.Flags().String("alerts-queue", "alerts", "RabbitMQ queue for alert messages")
	serverCmd.Flags().String("mqtt-broker", "", "MQTT broker URL (empty disables the MQTT source)")
	serverCmd.Flags().String("mqtt-client-id", "envmon-server", "MQTT client ID")
	serverCmd.Flags().Int("http-port", 8080, "HTTP API port")
	serverCmd.Flags().Int("metrics-port", 9091, "Prometheus metrics port (0 disables)")
	serverCmd.Flags().Int("history-depth", 1, "recent readings fetched per sensor for jump detection")

	// Bind flags to viper
	_ = viper.BindPFlag("server.db.host", serverCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("server.db.port", serverCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("server.db.user", serverCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("server.db.password", serverCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("server.db.name", serverCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("server.db.sslmode", serverCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("server.rabbitmq.url", serverCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("server.rabbitmq.readings_queue", serverCmd.Flags().Lookup("readings-queue"))
	_ = viper.BindPFlag("server.rabbitmq.registration_queue", serverCmd.Flags().Lookup("registration-queue"))
	_ = viper.BindPFlag("server.rabbitmq.alerts_queue", serverCmd.Flags().Lookup("alerts-queue"))
	_ = viper.BindPFlag("server.mqtt.broker", serverCmd.Flags().Lookup("mqtt-broker"))
	_ = viper.BindPFlag("server.mqtt.client_id", serverCmd.Flags().Lookup("mqtt-client-id"))
	_ = viper.BindPFlag("server.http.port", serverCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("server.metrics.port", serverCmd.Flags().Lookup("metrics-port"))
	_ = viper.BindPFlag("server.history_depth", serverCmd.Flags().Lookup("history-depth"))
}

func runServer(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting monitoring service")

	// Create server configuration from viper
	config := &server.Config{
		Logger:            logger,
		DBHost:            viper.GetString("server.db.host"),
		DBPort:            viper.GetInt("server.db.port"),
		DBUser:            viper.GetString("server.db.user"),
		DBPassword:        viper.GetString("server.db.password"),
		DBName:            viper.GetString("server.db.name"),
		DBSSLMode:         viper.GetString("server.db.sslmode"),
		RabbitMQURL:       viper.GetString("server.rabbitmq.url"),
		ReadingsQueue:     viper.GetString("server.rabbitmq.readings_queue"),
		RegistrationQueue: viper.GetString("server.rabbitmq.registration_queue"),
		AlertsQueue:       viper.GetString("server.rabbitmq.alerts_queue"),
		MQTTBrokerURL:     viper.GetString("server.mqtt.broker"),
		MQTTClientID:      viper.GetString("server.mqtt.client_id"),
		HTTPPort:          viper.GetInt("server.http.port"),
		MetricsPort:       viper.GetInt("server.metrics.port"),
		HistoryDepth:      viper.GetInt("server.history_depth"),
	}

	srv, err := server.New(config)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return err
	}

	logger.Info("server configuration",
		"db_host", config.DBHost,
		"db_port", config.DBPort,
		"db_name", config.DBName,
		"rabbitmq_url", config.RabbitMQURL,
		"readings_queue", config.ReadingsQueue,
		"registration_queue", config.RegistrationQueue,
		"alerts_queue", config.AlertsQueue,
		"mqtt_broker", config.MQTTBrokerURL,
		"http_port", config.HTTPPort,
		"metrics_port", config.MetricsPort,
	)

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	return nil
}
