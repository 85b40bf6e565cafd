// Package config provides configuration structures and validation for the application.
// Backend-specific groups (Postgres, MongoDB, MinIO, Kafka) are validated only when the
// corresponding backend is selected.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend selectors
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMinio    = "minio"

	ExtractionModeHTTP    = "http"
	ExtractionModePattern = "pattern"
)

// Config holds the complete application configuration with settings for all components
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Store       StoreConfig
	Intake      IntakeConfig
	Extraction  ExtractionConfig
	Compliance  ComplianceConfig
	Storage     StorageConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
	MaxUploadBytes  int64         // Largest accepted document upload
}

// StoreConfig selects where document records and alerts live
type StoreConfig struct {
	DocumentBackend string // memory | postgres
	AlertBackend    string // memory | mongo
	SeedPortfolio   bool
}

// IntakeConfig contains intake pipeline policy
type IntakeConfig struct {
	DraftMarkers    []string
	AllowErrorRetry bool
}

// ExtractionConfig contains extraction service settings
type ExtractionConfig struct {
	Mode      string // http | pattern
	URL       string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
}

// ComplianceConfig contains aggregation weights and display policy
type ComplianceConfig struct {
	CriticalAlertPenalty int
	CriticalRiskPenalty  int
	DedupSharedDocument  bool
	CurrencyRounding     string
}

// StorageConfig contains object storage configuration for uploaded bytes
type StorageConfig struct {
	Backend         string // memory | minio
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Enabled           bool
	Brokers           string
	AnalysisTopic     string
	EventsTopic       string
	NumPartitions     int // Number of partitions for topics
	ReplicationFactor int // Replication factor for topics
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for Dead Letter Queue
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int // Maximum number of retry attempts for outbox messages
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// validate performs validation of all configuration values and returns every violation at once
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}
	if c.Server.MaxUploadBytes <= 0 {
		validationErrors = append(validationErrors, "SERVER_MAX_UPLOAD_BYTES must be greater than 0")
	}

	// Validate Store config
	if c.Store.DocumentBackend != BackendMemory && c.Store.DocumentBackend != BackendPostgres {
		validationErrors = append(validationErrors, "STORE_BACKEND must be one of memory, postgres")
	}
	if c.Store.AlertBackend != BackendMemory && c.Store.AlertBackend != BackendMongo {
		validationErrors = append(validationErrors, "ALERT_BACKEND must be one of memory, mongo")
	}

	// Validate Extraction config
	switch c.Extraction.Mode {
	case ExtractionModeHTTP:
		if c.Extraction.URL == "" {
			validationErrors = append(validationErrors, "EXTRACTION_URL is required when EXTRACTION_MODE is http")
		}
	case ExtractionModePattern:
	default:
		validationErrors = append(validationErrors, "EXTRACTION_MODE must be one of http, pattern")
	}
	if c.Extraction.Timeout <= 0 {
		validationErrors = append(validationErrors, "EXTRACTION_TIMEOUT must be greater than 0")
	}
	if c.Extraction.RateLimit < 0 {
		validationErrors = append(validationErrors, "EXTRACTION_RATE_LIMIT must not be negative")
	}

	// Validate Compliance config
	if c.Compliance.CriticalAlertPenalty < 0 {
		validationErrors = append(validationErrors, "COMPLIANCE_CRITICAL_ALERT_PENALTY must not be negative")
	}
	if c.Compliance.CriticalRiskPenalty < 0 {
		validationErrors = append(validationErrors, "COMPLIANCE_CRITICAL_RISK_PENALTY must not be negative")
	}
	if c.Compliance.CurrencyRounding != "half_away_from_zero" && c.Compliance.CurrencyRounding != "half_even" {
		validationErrors = append(validationErrors, "CURRENCY_ROUNDING must be one of half_away_from_zero, half_even")
	}

	// Validate Storage config
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendMinio:
		if c.Storage.Endpoint == "" {
			validationErrors = append(validationErrors, "MINIO_ENDPOINT is required when STORAGE_BACKEND is minio")
		}
		if c.Storage.Bucket == "" {
			validationErrors = append(validationErrors, "MINIO_BUCKET is required when STORAGE_BACKEND is minio")
		}
	default:
		validationErrors = append(validationErrors, "STORAGE_BACKEND must be one of memory, minio")
	}

	// Validate Kafka config
	if c.Kafka.Enabled {
		if c.Store.DocumentBackend != BackendPostgres {
			validationErrors = append(validationErrors, "KAFKA_ENABLED requires STORE_BACKEND=postgres")
		}
		if len(c.Kafka.Brokers) == 0 {
			validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
		}
		if c.Kafka.AnalysisTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_ANALYSIS_TOPIC is required")
		}
		if c.Kafka.EventsTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_EVENTS_TOPIC is required")
		}
		if c.Kafka.ConsumerGroup == "" {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
		}
		if c.Kafka.MinBytes <= 0 {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
		}
		if c.Kafka.MaxBytes <= 0 {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
		}
		if c.Kafka.MaxWait <= 0 {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
		}
		if c.Kafka.DLQTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
		}
	}

	// Validate PostgreSQL config
	if c.Store.DocumentBackend == BackendPostgres {
		if c.Postgres.URL == "" {
			validationErrors = append(validationErrors, "POSTGRES_URL is required")
		}
		if c.Postgres.MaxConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
		}
		if c.Postgres.MinConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
		}
		if c.Postgres.ConnMaxLifetime <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
		}
		if c.Postgres.ConnMaxIdleTime <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
		}

		// Outbox relay only exists alongside Postgres
		if c.Outbox.PollingInterval <= 0 {
			validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
		}
		if c.Outbox.BatchSize <= 0 {
			validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
		}
		if c.Outbox.MaxRetryAttempts <= 0 {
			validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
		}
	}

	// Validate MongoDB config
	if c.Store.AlertBackend == BackendMongo {
		if c.MongoDB.URI == "" {
			validationErrors = append(validationErrors, "MONGO_URI is required")
		}
		if c.MongoDB.Database == "" {
			validationErrors = append(validationErrors, "MONGO_DATABASE is required")
		}
		if c.MongoDB.Timeout <= 0 {
			validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
		}
		if c.MongoDB.MaxPoolSize <= 0 {
			validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
		}
		if c.MongoDB.MinPoolSize <= 0 {
			validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
		}
		if c.MongoDB.MaxConnIdleTime <= 0 {
			validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
		}
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}

// splitList turns a comma separated setting into trimmed, non-empty items
func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// String renders the non-secret parts of the configuration for startup logs
func (c *Config) String() string {
	return fmt.Sprintf("env=%s store=%s alerts=%s storage=%s extraction=%s kafka=%t",
		c.Application.Env, c.Store.DocumentBackend, c.Store.AlertBackend,
		c.Storage.Backend, c.Extraction.Mode, c.Kafka.Enabled)
}
