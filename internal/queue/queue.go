// Package queue provides the durable ingestion queue: best-effort
// publishing of mark-ingestion jobs and an at-least-once consumer loop.
package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Message is a payload addressed to a named queue.
type Message struct {
	Target string
	Body   interface{}
}

// Publisher sends messages to the ingestion queue.
type Publisher interface {
	Publish(ctx context.Context, message *Message) error
	Close() error
}

// IngestionJob is the payload of one capture job. MarkID is the only field;
// the same mark may be enqueued multiple times, each delivery producing an
// independent Access.
type IngestionJob struct {
	MarkID string `json:"markId"`
}

// newMessageID tags published messages for correlation in logs.
func newMessageID() string {
	return uuid.NewString()
}

// Validate rejects malformed payloads before they reach the worker.
func (j IngestionJob) Validate() error {
	if j.MarkID == "" {
		return fmt.Errorf("ingestion job has no markId")
	}
	if _, err := uuid.Parse(j.MarkID); err != nil {
		return fmt.Errorf("ingestion job markId is not a UUID: %w", err)
	}
	return nil
}
