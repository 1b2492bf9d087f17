package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/jchook/retrace/internal/config"
	"github.com/jchook/retrace/internal/observability"
)

// RabbitMQPublisher publishes jobs to a durable RabbitMQ queue.
type RabbitMQPublisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  observability.Logger
	metrics observability.Metrics
}

// NewRabbitMQPublisher connects to RabbitMQ and opens a channel.
func NewRabbitMQPublisher(cfg *config.RabbitMQConfig, logger observability.Logger, metrics observability.Metrics) (*RabbitMQPublisher, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		logger.Error("failed to create channel", "error", err)
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	logger.Info("RabbitMQ publisher initialized")

	return &RabbitMQPublisher{
		conn:    conn,
		channel: channel,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func (q *RabbitMQPublisher) Publish(ctx context.Context, message *Message) error {
	startTime := time.Now()
	defer func() {
		q.metrics.RecordHistogram("queue.publish.duration",
			time.Since(startTime).Seconds(),
			map[string]string{"target": message.Target})
	}()

	body, err := json.Marshal(message.Body)
	if err != nil {
		q.logger.Error("failed to marshal message", "error", err)
		q.metrics.IncrementCounter("queue.publish.error",
			map[string]string{"target": message.Target, "error": "marshal_failed"})
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// Declare queue (idempotent operation)
	_, err = q.channel.QueueDeclare(
		message.Target, // queue name
		true,           // durable
		false,          // auto-delete
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		q.logger.Error("failed to declare queue", "error", err, "queue", message.Target)
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	amqpMsg := amqp091.Publishing{
		DeliveryMode: amqp091.Persistent,
		ContentType:  "application/json",
		MessageId:    newMessageID(),
		Body:         body,
		Timestamp:    time.Now(),
	}

	err = q.channel.PublishWithContext(
		ctx,
		"",             // exchange (empty for direct queue)
		message.Target, // routing key (queue name)
		false,          // mandatory
		false,          // immediate
		amqpMsg,
	)
	if err != nil {
		q.logger.Error("failed to publish message", "error", err, "target", message.Target)
		q.metrics.IncrementCounter("queue.publish.error",
			map[string]string{"target": message.Target, "error": "publish_failed"})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	q.logger.Info("message published", "target", message.Target, "size", len(body))
	q.metrics.IncrementCounter("queue.publish.success",
		map[string]string{"target": message.Target})

	return nil
}

func (q *RabbitMQPublisher) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
