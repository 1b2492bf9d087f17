package config

import "fmt"

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Adapters.Queue {
	case "rabbitmq":
		if c.Queue.RabbitMQ.URL == "" {
			return fmt.Errorf("RABBITMQ_URL is required for the rabbitmq queue adapter")
		}
	case "sqs":
		if c.Queue.SQS.Region == "" {
			return fmt.Errorf("SQS_REGION is required for the sqs queue adapter")
		}
	default:
		return fmt.Errorf("unsupported queue adapter: %s", c.Adapters.Queue)
	}

	switch c.Adapters.Storage {
	case "fs":
		if c.Storage.Root == "" {
			return fmt.Errorf("STORAGE_ROOT is required for the fs storage adapter")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage adapter")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("S3_REGION is required for the s3 storage adapter")
		}
	default:
		return fmt.Errorf("unsupported storage adapter: %s", c.Adapters.Storage)
	}

	if c.Queue.Name == "" {
		return fmt.Errorf("QUEUE_NAME must not be empty")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("HTTP_MAX_BODY_BYTES must be positive")
	}

	return nil
}
