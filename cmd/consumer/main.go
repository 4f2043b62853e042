package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"auth-cdc/internal/broker"
	"auth-cdc/internal/changelog"
	"auth-cdc/internal/config"
	"auth-cdc/internal/models"
)

func main() {
	// Setup logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	// Load configuration
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	logger.Info("Starting database change consumer...")

	// An unreachable broker at startup is fatal
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := broker.Dial(startupCtx, cfg.Kafka.Brokers); err != nil {
		startupCancel()
		logger.Fatalf("Failed to connect to Kafka: %v", err)
	}
	startupCancel()

	reader := broker.NewGroupReader(broker.ReaderConfig{
		Brokers:           cfg.Kafka.Brokers,
		GroupID:           cfg.Consumer.ChangelogGroup,
		Topics:            []string{models.TopicDatabaseChanges},
		SessionTimeout:    cfg.Consumer.SessionTimeout,
		HeartbeatInterval: cfg.Consumer.HeartbeatInterval,
	})

	consumer := changelog.NewConsumer(reader, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- consumer.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v, shutting down...", sig)
		cancel()
		if err := <-errChan; err != nil {
			logger.Errorf("Consumer error: %v", err)
		}
	case err := <-errChan:
		if err != nil {
			logger.Errorf("Consumer error: %v", err)
		}
	}

	if err := reader.Close(); err != nil {
		logger.Errorf("Error closing reader: %v", err)
	}

	logger.Info("Database change consumer stopped")
}
