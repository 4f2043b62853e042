package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"auth-cdc/internal/api"
	"auth-cdc/internal/broker"
	"auth-cdc/internal/cdc"
	"auth-cdc/internal/config"
	"auth-cdc/internal/models"
	"auth-cdc/internal/replication"
	"auth-cdc/internal/storage"
	"auth-cdc/internal/watermark"
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

	// Set log level from config
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	logger.Info("Starting backend event pipeline...")

	// Storage and broker must be reachable at startup; running degraded
	// would silently lose events.
	store, err := storage.Open(cfg.MySQL, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	if err := store.Migrate(startupCtx); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	sink, err := broker.NewKafkaSink(broker.KafkaConfig{
		Brokers:     cfg.Kafka.Brokers,
		MaxAttempts: cfg.Kafka.MaxAttempts,
	})
	if err != nil {
		logger.Fatalf("Failed to create kafka sink: %v", err)
	}

	publisher := broker.NewPublisher(sink, logger)
	if err := publisher.Connect(startupCtx, cfg.Kafka.Brokers); err != nil {
		logger.Fatalf("Failed to connect to Kafka: %v", err)
	}

	// Change poller over the three monitored sources
	marks := watermark.NewStore()
	sources := []cdc.Source{
		{Name: models.TableUsers, Scan: store.UserChanges},
		{Name: models.TableUserActivities, Scan: store.ActivityChanges},
		{Name: models.TableAuditLogs, Scan: store.AuditLogChanges},
	}
	poller := cdc.NewPoller(sources, publisher, marks, cfg.Poller.Interval, cfg.Poller.ErrorBackoff, logger)
	if err := poller.Start(); err != nil {
		logger.Fatalf("Failed to start poller: %v", err)
	}

	// Replication consumer joins the backend's own consumer group
	reader := broker.NewGroupReader(broker.ReaderConfig{
		Brokers:           cfg.Kafka.Brokers,
		GroupID:           cfg.Consumer.ReplicationGroup,
		Topics:            []string{models.TopicUserActivities, models.TopicAuditLogs},
		SessionTimeout:    cfg.Consumer.SessionTimeout,
		HeartbeatInterval: cfg.Consumer.HeartbeatInterval,
	})
	replicator := replication.NewConsumer(reader, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- replicator.Run(ctx)
	}()

	// Health and metrics endpoint
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: api.NewRouter(publisher, store)}
	go func() {
		logger.Infof("Health server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Health server error: %v", err)
		}
	}()

	// Wait for signal or consumer failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var consumerErr error
	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v, shutting down...", sig)
		cancel()
		consumerErr = <-errChan
	case consumerErr = <-errChan:
		cancel()
	}
	if consumerErr != nil {
		logger.Errorf("Replication consumer error: %v", consumerErr)
	}

	// Shutdown errors are logged but never block the exit
	poller.Stop()
	if err := reader.Close(); err != nil {
		logger.Errorf("Error closing consumer reader: %v", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Errorf("Error closing publisher: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error shutting down health server: %v", err)
	}

	logger.Info("Backend event pipeline stopped")
}
