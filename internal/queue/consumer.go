package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/jchook/retrace/internal/config"
	"github.com/jchook/retrace/internal/observability"
)

// Handler processes one ingestion job. A returned error fails the delivery;
// whether it is redelivered depends on the error's retryability.
type Handler interface {
	Process(ctx context.Context, job IngestionJob) error
}

// retryable is implemented by errors that know whether a retry can help.
type retryable interface {
	Retryable() bool
}

// Consumer drains the ingestion queue and dispatches jobs to a Handler.
// Each message is leased via the broker's unacked-delivery mechanism:
// a crashed worker's deliveries return to the queue and are handed to
// another consumer, which makes the pipeline at-least-once.
type Consumer struct {
	queueName string
	cfg       *config.RabbitMQConfig
	handler   Handler
	logger    observability.Logger
	metrics   observability.Metrics

	conn    *amqp091.Connection
	channel *amqp091.Channel
	cancel  context.CancelFunc
}

// NewConsumer creates a consumer for the named queue.
func NewConsumer(queueName string, cfg *config.RabbitMQConfig, handler Handler, logger observability.Logger, metrics observability.Metrics) *Consumer {
	return &Consumer{
		queueName: queueName,
		cfg:       cfg,
		handler:   handler,
		logger:    logger.WithFields(map[string]interface{}{"component": "queue.consumer"}),
		metrics:   metrics,
	}
}

// Start connects and consumes until Stop is called or the channel closes.
// It blocks the calling goroutine.
func (c *Consumer) Start() error {
	conn, err := amqp091.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	c.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	c.channel = ch

	if c.cfg.PrefetchCount > 0 {
		if err := ch.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	// Declare queue (idempotent - creates if doesn't exist)
	q, err := ch.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer tag (auto-generated)
		false,  // auto-ack (we ack manually)
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to consume: %w", err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	defer cancel()

	c.logger.Info("consumer started",
		"queue", c.queueName,
		"prefetch", c.cfg.PrefetchCount)

	for msg := range msgs {
		c.processMessage(baseCtx, msg)
	}

	return nil
}

// processMessage handles a single delivery and decides its fate: ack on
// success and on non-retryable failures (log and drop), dead-letter
// malformed payloads, requeue retryable failures on first delivery.
func (c *Consumer) processMessage(baseCtx context.Context, msg amqp091.Delivery) {
	startTime := time.Now()

	ctx := baseCtx
	if c.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.JobTimeout)
		defer cancel()
	}

	msgID := msg.MessageId
	if msgID == "" {
		msgID = fmt.Sprintf("rmq-%d", msg.DeliveryTag)
	}

	var job IngestionJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		// Malformed payloads are dead-lettered rather than crashing the
		// consumer loop or spinning on redelivery.
		c.logger.Error("malformed job payload, dead-lettering",
			"id", msgID,
			"error", err)
		c.metrics.IncrementCounter("queue.consume.dead_letter", map[string]string{"reason": "malformed"})
		c.nack(msg, msgID, false)
		return
	}
	if err := job.Validate(); err != nil {
		c.logger.Error("invalid job payload, dead-lettering",
			"id", msgID,
			"error", err)
		c.metrics.IncrementCounter("queue.consume.dead_letter", map[string]string{"reason": "invalid"})
		c.nack(msg, msgID, false)
		return
	}

	err := c.handler.Process(ctx, job)

	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "id", msgID, "error", ackErr)
		}
		c.logger.Info("job processed",
			"id", msgID,
			"mark_id", job.MarkID,
			"duration_ms", time.Since(startTime).Milliseconds())
		c.metrics.IncrementCounter("queue.consume.success", nil)
	} else if !isRetryable(err) {
		// Non-retryable failures (mark missing, no URL) are dropped: the
		// job acknowledges so the queue does not redeliver.
		if ackErr := msg.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "id", msgID, "error", ackErr)
		}
		c.logger.Error("job failed permanently, dropping",
			"id", msgID,
			"mark_id", job.MarkID,
			"error", err)
		c.metrics.IncrementCounter("queue.consume.dropped", nil)
	} else {
		requeue := !msg.Redelivered
		c.nack(msg, msgID, requeue)
		c.logger.Error("job failed",
			"id", msgID,
			"mark_id", job.MarkID,
			"error", err,
			"requeued", requeue)
		c.metrics.IncrementCounter("queue.consume.failure", nil)
	}

	c.metrics.RecordHistogram("queue.consume.duration_ms",
		float64(time.Since(startTime).Milliseconds()), nil)
}

func (c *Consumer) nack(msg amqp091.Delivery, msgID string, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		c.logger.Error("failed to nack message", "id", msgID, "error", err)
	}
}

// Stop aborts the in-flight job context and closes the connection. The
// aborted job records a cancellation error on its Access/Mark rows before
// the delivery returns to the queue.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.logger.Info("consumer stopped")
	return nil
}

func isRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	// Unknown errors may be transient; let the queue retry them.
	return true
}
