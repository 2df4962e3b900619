package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"envmon.dev/envmon/internal/simulator"
	"envmon.dev/envmon/pkg/metrics"
)

var simulatorCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Run the station simulator",
	Long: `Run the station simulator that:
- Generates a synthetic fleet of monitoring stations
- Publishes station registrations to RabbitMQ
- Publishes readings over MQTT, or to RabbitMQ when no broker is set`,
	RunE: runSimulator,
}

func init() {
	rootCmd.AddCommand(simulatorCmd)

	// Simulator-specific flags
	simulatorCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	simulatorCmd.Flags().String("readings-queue", "readings", "RabbitMQ queue for sensor readings")
	simulatorCmd.Flags().String("registration-queue", "registrations", "RabbitMQ queue for station registrations")
	simulatorCmd.Flags().String("mqtt-broker", "", "MQTT broker URL (empty publishes readings to RabbitMQ)")
	simulatorCmd.Flags().Duration("interval", 10*time.Second, "time between reading batches per station")
	simulatorCmd.Flags().Int("min-stations", 2, "minimum fleet size")
	simulatorCmd.Flags().Int("max-stations", 5, "maximum fleet size")

	// Bind flags to viper
	_ = viper.BindPFlag("simulator.rabbitmq.url", simulatorCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("simulator.rabbitmq.readings_queue", simulatorCmd.Flags().Lookup("readings-queue"))
	_ = viper.BindPFlag("simulator.rabbitmq.registration_queue", simulatorCmd.Flags().Lookup("registration-queue"))
	_ = viper.BindPFlag("simulator.mqtt.broker", simulatorCmd.Flags().Lookup("mqtt-broker"))
	_ = viper.BindPFlag("simulator.interval", simulatorCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("simulator.min_stations", simulatorCmd.Flags().Lookup("min-stations"))
	_ = viper.BindPFlag("simulator.max_stations", simulatorCmd.Flags().Lookup("max-stations"))
}

func runSimulator(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting station simulator")

	// Create simulator configuration from viper
	config := &simulator.ServerConfig{
		Logger:            logger,
		RabbitMQURL:       viper.GetString("simulator.rabbitmq.url"),
		ReadingsQueue:     viper.GetString("simulator.rabbitmq.readings_queue"),
		RegistrationQueue: viper.GetString("simulator.rabbitmq.registration_queue"),
		MQTTBrokerURL:     viper.GetString("simulator.mqtt.broker"),
		Interval:          viper.GetDuration("simulator.interval"),
		MinStations:       viper.GetInt("simulator.min_stations"),
		MaxStations:       viper.GetInt("simulator.max_stations"),
		Metrics:           metrics.NewSimulatorMetrics(metrics.Namespace),
		MQMetrics:         metrics.NewMQMetrics(metrics.Namespace),
	}

	srv, err := simulator.NewServer(config)
	if err != nil {
		logger.Error("failed to create simulator", "error", err)
		return err
	}

	logger.Info("simulator configuration",
		"rabbitmq_url", config.RabbitMQURL,
		"readings_queue", config.ReadingsQueue,
		"registration_queue", config.RegistrationQueue,
		"mqtt_broker", config.MQTTBrokerURL,
		"interval", config.Interval,
	)

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("simulator error", "error", err)
		return err
	}

	return nil
}
