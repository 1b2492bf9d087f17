package queue

import (
	"fmt"

	"github.com/jchook/retrace/internal/config"
	"github.com/jchook/retrace/internal/observability"
)

// NewPublisher builds the publisher selected by cfg.Adapters.Queue.
func NewPublisher(cfg *config.Config, logger observability.Logger, metrics observability.Metrics) (Publisher, error) {
	switch cfg.Adapters.Queue {
	case "rabbitmq":
		logger.Info("creating RabbitMQ queue publisher", "url", cfg.Queue.RabbitMQ.URL)
		return NewRabbitMQPublisher(&cfg.Queue.RabbitMQ,
			logger.WithFields(map[string]interface{}{"component": "queue.rabbitmq"}), metrics)

	case "sqs":
		logger.Info("creating SQS queue publisher", "region", cfg.Queue.SQS.Region)
		return NewSQSPublisher(&cfg.Queue.SQS,
			logger.WithFields(map[string]interface{}{"component": "queue.sqs"}), metrics)

	default:
		return nil, fmt.Errorf("unsupported queue adapter: %s", cfg.Adapters.Queue)
	}
}
