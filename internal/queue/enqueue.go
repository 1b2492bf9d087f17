package queue

import (
	"context"

	"github.com/jchook/retrace/internal/observability"
)

// EnqueueMarkIngestion publishes an ingestion job for the given mark. It is
// best-effort: a publish failure is logged and swallowed so that it never
// fails the request that created the Mark.
func EnqueueMarkIngestion(ctx context.Context, pub Publisher, queueName, markID string, logger observability.Logger) {
	err := pub.Publish(ctx, &Message{
		Target: queueName,
		Body:   IngestionJob{MarkID: markID},
	})
	if err != nil {
		logger.Warn("failed to enqueue mark ingestion job",
			"mark_id", markID,
			"queue", queueName,
			"error", err)
	}
}
