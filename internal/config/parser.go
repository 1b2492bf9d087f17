package config

import (
	"os"
	"strconv"
	"time"
)

// parse builds a Config from environment variables. Missing values are left
// zero and filled in by applyDefaults.
func parse() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", ""),
		ServiceName: getEnv("SERVICE_NAME", ""),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		LogFormat:   getEnv("LOG_FORMAT", ""),

		Adapters: AdapterConfig{
			Queue:   getEnv("QUEUE_ADAPTER", ""),
			Storage: getEnv("STORAGE_ADAPTER", ""),
		},

		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", ""),
			Port:         getEnvInt("DB_PORT", 0),
			Database:     getEnv("DB_NAME", ""),
			Username:     getEnv("DB_USER", ""),
			Password:     getEnv("DB_PASS", ""),
			SSLMode:      getEnv("DB_SSLMODE", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 0),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 0),
		},

		Queue: QueueConfig{
			Name: getEnv("QUEUE_NAME", ""),
			RabbitMQ: RabbitMQConfig{
				URL:           getEnv("RABBITMQ_URL", ""),
				PrefetchCount: getEnvInt("RABBITMQ_PREFETCH", 0),
				JobTimeout:    getEnvDuration("JOB_TIMEOUT", 0),
			},
			SQS: SQSConfig{
				Region: getEnv("SQS_REGION", ""),
			},
		},

		Storage: StorageConfig{
			Root: getEnv("STORAGE_ROOT", ""),
			S3: S3Config{
				Bucket:          getEnv("S3_BUCKET", ""),
				Region:          getEnv("S3_REGION", ""),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
			},
		},

		HTTP: HTTPConfig{
			Timeout:      getEnvDuration("HTTP_TIMEOUT", 0),
			MaxRetries:   getEnvInt("HTTP_MAX_RETRIES", 0),
			UserAgent:    getEnv("HTTP_USER_AGENT", ""),
			MaxBodyBytes: getEnvInt64("HTTP_MAX_BODY_BYTES", 0),
		},

		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
