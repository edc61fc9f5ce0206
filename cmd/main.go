package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/kafeventstore/internal/config"
	"github.com/jittakal/kafeventstore/internal/config/dto"
	"github.com/jittakal/kafeventstore/internal/coordinator"
	"github.com/jittakal/kafeventstore/internal/kafka"
	"github.com/jittakal/kafeventstore/internal/observability"
	"github.com/jittakal/kafeventstore/internal/partition"
	"github.com/jittakal/kafeventstore/internal/recordwriter"
	"github.com/jittakal/kafeventstore/internal/server"
	internalstorage "github.com/jittakal/kafeventstore/internal/storage"
	"github.com/jittakal/kafeventstore/internal/validator"
	"github.com/jittakal/kafeventstore/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})
	logger.Info("starting kafka event store",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, fn)
		logger.Debug("registered cleanup", "component", name)
	}

	storageAdapter, err := newStorageAdapter(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create storage adapter: %w", err)
	}

	recordWriters, err := recordwriter.DefaultRegistry(cfg.Parquet.Compression)
	if err != nil {
		return fmt.Errorf("failed to build record writer registry: %w", err)
	}
	provider, err := recordWriters.Get(cfg.Connector.RecordWriterProviderClass)
	if err != nil {
		return fmt.Errorf("failed to resolve record writer: %w", err)
	}

	rotation := partition.NewCountPolicy(cfg.Connector.FlushSize)

	machine := partition.New(storageAdapter, provider, rotation, partition.Config{
		Root:      cfg.Connector.URL,
		TopicsDir: cfg.Connector.TopicsDir,
	}, metrics)

	coord := coordinator.New(machine, storageAdapter, coordinator.Config{
		RetryBackoffMs: cfg.Connector.RetryBackoffMS,
	}, logger, metrics)
	addCleanup("coordinator", coord.Close)

	eventValidator := validator.NewCloudEventsValidator()

	dlqConfig := kafka.DLQConfig{
		Enabled:     cfg.Kafka.DLQ.Enabled,
		TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
		MaxRetries:  cfg.Kafka.DLQ.MaxRetries,
	}
	consumerConfig := kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		SecurityProtocol:    cfg.Kafka.SecurityProtocol,
		SASLMechanism:       cfg.Kafka.SASLMechanism,
		SASLUsername:        cfg.Kafka.SASLUsername,
		SASLPassword:        cfg.Kafka.SASLPassword,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
	}

	dlqPublisher, err := kafka.NewDLQPublisher(cfg.Kafka.BootstrapServers, consumerConfig, dlqConfig, logger, cfg.Application.Name)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", dlqPublisher.Close)

	kafkaConsumer, err := kafka.NewSaramaConsumer(consumerConfig, eventValidator, dlqPublisher, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	addCleanup("kafka-consumer", kafkaConsumer.Close)

	healthChecker := &connectorHealthChecker{consumer: kafkaConsumer}

	httpServer := server.NewServer(
		cfg.Observability.Health.Port,
		cfg.Observability.Metrics.Port,
		healthChecker,
		registry,
		logger,
	)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	logger.Info("application started successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := kafkaConsumer.Subscribe(ctx, cfg.Kafka.Consumer.Topics); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	runErrChan := make(chan error, 1)
	go func() {
		runErrChan <- kafkaConsumer.Run(ctx, coord)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("received termination signal")
	case err := <-runErrChan:
		if err != nil && err != context.Canceled {
			logger.Error("consume loop exited with error", "error", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	select {
	case <-runErrChan:
	case <-time.After(time.Duration(cfg.Shutdown.GracePeriodSeconds) * time.Second):
	}

	for i := len(cleanupFuncs) - 1; i >= 0; i-- {
		if err := cleanupFuncs[i](); err != nil {
			logger.Error("cleanup failed", "error", err)
		}
	}

	logger.Info("application stopped successfully")
	return nil
}

// newStorageAdapter builds the pkg/storage.Adapter selected by the
// connector's storage_class, from the matching backend section of the
// storage configuration.
func newStorageAdapter(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (storage.Adapter, error) {
	switch cfg.Connector.StorageClass {
	case "file":
		return internalstorage.NewFileAdapter(internalstorage.FileConfig{
			BasePath: cfg.Storage.File.BasePath,
		}, logger, metrics)
	case "s3":
		return internalstorage.NewS3Adapter(internalstorage.S3Config{
			Bucket:       cfg.Storage.S3.Bucket,
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
			SSEEnabled:   cfg.Storage.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Storage.S3.SSEKMSKeyID,
		}, logger, metrics)
	case "azure":
		return internalstorage.NewAzureAdapter(internalstorage.AzureConfig{
			AccountName:   cfg.Storage.Azure.AccountName,
			AccountKey:    os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"),
			ContainerName: cfg.Storage.Azure.Container,
		}, logger, metrics)
	case "gcs":
		return internalstorage.NewGCSAdapter(internalstorage.GCSConfig{
			Bucket:               cfg.Storage.GCS.Bucket,
			ProjectID:            cfg.Storage.GCS.ProjectID,
			CredentialsFile:      cfg.Storage.GCS.CredentialsFile,
			CredentialsJSON:      os.Getenv("GCP_CREDENTIALS_JSON"),
			UseDefaultCredential: cfg.Storage.GCS.UseDefaultCredential,
		}, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported connector storage_class: %s (supported: file, s3, azure, gcs)", cfg.Connector.StorageClass)
	}
}

// connectorHealthChecker always reports the process as live, and reports
// it ready once the consumer's Ready channel has been closed.
type connectorHealthChecker struct {
	consumer *kafka.SaramaConsumer
}

func (h *connectorHealthChecker) Liveness() bool {
	return true
}

func (h *connectorHealthChecker) Readiness(ctx context.Context) bool {
	select {
	case <-h.consumer.Ready():
		return true
	default:
		return false
	}
}

func (h *connectorHealthChecker) IsHealthy() bool {
	return true
}

func (h *connectorHealthChecker) GetStatus() map[string]string {
	return map[string]string{"status": "healthy"}
}
