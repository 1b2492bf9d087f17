package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/jchook/retrace/internal/config"
	"github.com/jchook/retrace/internal/observability"
)

// SQSPublisher publishes jobs to AWS SQS. The consumer side of this
// deployment runs off SQS's own visibility-timeout lease mechanism.
type SQSPublisher struct {
	client  *sqs.Client
	logger  observability.Logger
	metrics observability.Metrics

	mu        sync.Mutex
	queueURLs map[string]string // cache to avoid repeated lookups
}

// NewSQSPublisher creates an SQS-backed publisher.
func NewSQSPublisher(cfg *config.SQSConfig, logger observability.Logger, metrics observability.Metrics) (*SQSPublisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("SQS publisher initialized", "region", cfg.Region)

	return &SQSPublisher{
		client:    sqs.NewFromConfig(awsCfg),
		logger:    logger,
		metrics:   metrics,
		queueURLs: make(map[string]string),
	}, nil
}

func (q *SQSPublisher) Publish(ctx context.Context, message *Message) error {
	startTime := time.Now()
	defer func() {
		q.metrics.RecordHistogram("queue.publish.duration",
			time.Since(startTime).Seconds(),
			map[string]string{"target": message.Target})
	}()

	queueURL, err := q.getQueueURL(ctx, message.Target)
	if err != nil {
		q.logger.Error("failed to get queue URL", "error", err, "queue", message.Target)
		q.metrics.IncrementCounter("queue.publish.error",
			map[string]string{"target": message.Target, "error": "queue_url_failed"})
		return err
	}

	body, err := json.Marshal(message.Body)
	if err != nil {
		q.logger.Error("failed to marshal message", "error", err)
		q.metrics.IncrementCounter("queue.publish.error",
			map[string]string{"target": message.Target, "error": "marshal_failed"})
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		q.logger.Error("failed to send message", "error", err, "target", message.Target)
		q.metrics.IncrementCounter("queue.publish.error",
			map[string]string{"target": message.Target, "error": "send_failed"})
		return fmt.Errorf("failed to send message: %w", err)
	}

	q.logger.Info("message sent", "target", message.Target, "size", len(body))
	q.metrics.IncrementCounter("queue.publish.success",
		map[string]string{"target": message.Target})

	return nil
}

func (q *SQSPublisher) getQueueURL(ctx context.Context, queueName string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if url, ok := q.queueURLs[queueName]; ok {
		return url, nil
	}

	result, err := q.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL for %s: %w", queueName, err)
	}

	q.queueURLs[queueName] = *result.QueueUrl
	return *result.QueueUrl, nil
}

func (q *SQSPublisher) Close() error {
	return nil
}
