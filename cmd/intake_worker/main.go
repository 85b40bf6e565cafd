package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lma-docpulse/internal/config"
	"github.com/lma-docpulse/internal/data/postgres"
	"github.com/lma-docpulse/internal/intake/components"
	"github.com/lma-docpulse/internal/intake/consumer"
	"github.com/lma-docpulse/internal/intake/outbox_poller"
	"github.com/lma-docpulse/internal/logger"
	"github.com/lma-docpulse/internal/platform/messaging/consumers"
	"github.com/lma-docpulse/internal/platform/messaging/producers"
	"github.com/lma-docpulse/internal/platform/persistence"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("intake_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Intake Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// The worker only makes sense against shared state
	if !cfg.Kafka.Enabled || cfg.Store.DocumentBackend != config.BackendPostgres {
		log.Error("Intake worker requires KAFKA_ENABLED=true and STORE_BACKEND=postgres")
		os.Exit(1)
	}

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	docs := postgres.NewDocumentRepository(log, postgresDB, outboxRepo, components.TransitionPolicy(cfg))

	objectStore, err := components.CreateObjectStore(appCtx, log, &cfg.Storage)
	if err != nil {
		log.Error("Failed to initialize object store", "error", err)
		os.Exit(1)
	}

	pipeline, pool := components.CreatePipeline(log, cfg, docs, objectStore)

	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka)

	// dlqProducer is nil when DLQ_TOPIC is not configured; the handler is nil-safe
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	eventProducer, err := producers.NewDocumentEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize document event producer", "error", err)
		os.Exit(1)
	}

	requestHandler := consumer.NewAnalysisRequestHandler(
		log.With("component", "analysis_request_handler"),
		pipeline,
		dlqProducer,
	)

	eventPublisher := outbox_poller.NewKafkaEventPublisher(outboxRepo, eventProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, eventPublisher, log.With("component", "outbox_poller"))

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.AnalysisTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, requestHandler.HandleMessage); err != nil {
		log.Error("Failed to subscribe", "error", err)
		os.Exit(1)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// A consumer loop that exits while the app context is live is a failure
	go func() {
		<-kafkaConsumer.Done()
		if appCtx.Err() == nil {
			errChan <- fmt.Errorf("kafka consumer stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	log.Info("Waiting for services to stop...")
	stopped := make(chan struct{})
	go func() {
		<-kafkaConsumer.Done()
		wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if pool != nil {
		pool.Shutdown(cfg.Server.ShutdownTimeout)
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing document event producer", "error", err)
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	postgresDB.Close()

	if serviceErr != nil {
		log.Error("Intake Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Intake Worker shutdown completed with errors")
	} else {
		log.Info("Intake Worker shutdown completed successfully")
	}
}
