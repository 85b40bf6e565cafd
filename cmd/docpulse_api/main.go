package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lma-docpulse/internal/aggregation"
	"github.com/lma-docpulse/internal/api_gateway"
	"github.com/lma-docpulse/internal/api_gateway/service"
	"github.com/lma-docpulse/internal/config"
	"github.com/lma-docpulse/internal/dashboard"
	"github.com/lma-docpulse/internal/data/memory"
	"github.com/lma-docpulse/internal/data/mongo"
	"github.com/lma-docpulse/internal/data/postgres"
	"github.com/lma-docpulse/internal/domain/alert"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/intake/components"
	"github.com/lma-docpulse/internal/logger"
	"github.com/lma-docpulse/internal/platform/messaging/producers"
	"github.com/lma-docpulse/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("docpulse_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	log.Info("Starting DocPulse API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"document_backend", cfg.Store.DocumentBackend,
		"alert_backend", cfg.Store.AlertBackend,
	)

	policy := components.TransitionPolicy(cfg)

	// Document records
	var (
		docs       document.Repository
		postgresDB *persistence.PostgresDB
	)
	if cfg.Store.DocumentBackend == config.BackendPostgres {
		postgresDB, err = persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
		if err != nil {
			log.Error("Failed to initialize PostgreSQL", "error", err)
			os.Exit(1)
		}
		outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
		docs = postgres.NewDocumentRepository(log, postgresDB, outboxRepo, policy)
	} else {
		docs = memory.NewDocumentStore(log, policy)
	}

	// Alerts
	var (
		alerts  alert.Registry
		mongoDB *persistence.MongoDB
	)
	if cfg.Store.AlertBackend == config.BackendMongo {
		mongoDB, err = persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
		if err != nil {
			log.Error("Failed to initialize MongoDB", "error", err)
			os.Exit(1)
		}
		alertRepo := mongo.NewAlertRepository(log, mongoDB.Database())
		if err := alertRepo.EnsureIndexes(appCtx); err != nil {
			log.Error("Failed to create alert indexes", "error", err)
			os.Exit(1)
		}
		alerts = alertRepo
	} else {
		alerts = memory.NewAlertRegistry()
	}

	objectStore, err := components.CreateObjectStore(appCtx, log, &cfg.Storage)
	if err != nil {
		log.Error("Failed to initialize object store", "error", err)
		os.Exit(1)
	}

	pipeline, pool := components.CreatePipeline(log, cfg, docs, objectStore)

	dc, err := dashboard.New(appCtx, docs, alerts, cfg.Store.SeedPortfolio)
	if err != nil {
		log.Error("Failed to initialize dashboard context", "error", err)
		os.Exit(1)
	}
	engine := aggregation.NewEngine(log.With("component", "aggregation"), aggregation.ConfigFromCompliance(cfg.Compliance))

	// Kafka producer for asynchronous analysis requests, only when enabled
	var analysisProducer producers.MessagePublisher
	var kafkaProducer *producers.TopicProducer
	if cfg.Kafka.Enabled {
		kafkaProducer, err = producers.NewAnalysisRequestProducer(appCtx, log, &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize analysis request producer", "error", err)
			os.Exit(1)
		}
		analysisProducer = kafkaProducer
	}

	documentService := service.NewDocumentService(log, pipeline, docs, analysisProducer)
	dashboardService := service.NewDashboardService(log, engine, dc)

	server := api_gateway.NewServer(log, cfg, documentService, dashboardService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the pool and the stores go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if pool != nil {
		pool.Shutdown(cfg.Server.ShutdownTimeout)
	}

	if kafkaProducer != nil {
		if err = kafkaProducer.Close(); err != nil {
			log.Error("Error closing Kafka producer", "error", err)
		}
	}

	if postgresDB != nil {
		postgresDB.Close()
	}

	if mongoDB != nil {
		if err = mongoDB.Close(shutdownCtx); err != nil {
			log.Error("Error closing MongoDB connection", "error", err)
		}
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
