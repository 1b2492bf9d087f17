// Package config loads the worker's configuration from environment
// variables and optional .env files.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Environment string
	ServiceName string
	LogLevel    string
	LogFormat   string

	// Adapter selection
	Adapters AdapterConfig

	Database DatabaseConfig
	Queue    QueueConfig
	Storage  StorageConfig
	HTTP     HTTPConfig
	Metrics  MetricsConfig
}

// AdapterConfig specifies which implementations to use.
type AdapterConfig struct {
	Queue   string // "rabbitmq", "sqs"
	Storage string // "fs", "s3"
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN builds a lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode,
	)
}

// QueueConfig holds settings for the ingestion queue.
type QueueConfig struct {
	// Queue name jobs are published to and consumed from.
	Name string

	RabbitMQ RabbitMQConfig
	SQS      SQSConfig
}

// RabbitMQConfig holds AMQP connection settings.
type RabbitMQConfig struct {
	URL           string
	PrefetchCount int

	// JobTimeout bounds the processing of a single job, fetch and storage
	// writes included. A stalled job is aborted when it elapses.
	JobTimeout time.Duration
}

// SQSConfig holds AWS SQS settings.
type SQSConfig struct {
	Region string
}

// StorageConfig holds content store settings.
type StorageConfig struct {
	// Root is the base directory (fs) or key prefix (s3).
	Root string

	S3 S3Config
}

// S3Config holds S3-specific configuration.
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // for MinIO or other S3-compatible services
}

// HTTPConfig holds settings for the outbound fetch client.
type HTTPConfig struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string

	// MaxBodyBytes bounds how much of a response body is read into memory.
	MaxBodyBytes int64
}

// MetricsConfig holds settings for the Prometheus endpoint.
type MetricsConfig struct {
	Addr string
}

// Load reads .env files, parses the environment, applies defaults, and
// validates the result. Called once at process startup.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg := parse()
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
