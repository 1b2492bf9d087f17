package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jchook/retrace/internal/observability"
)

func TestIngestionJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		markID  string
		wantErr bool
	}{
		{"valid uuid", uuid.NewString(), false},
		{"empty", "", true},
		{"not a uuid", "mark-42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := IngestionJob{MarkID: tt.markID}.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, message *Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func TestEnqueueMarkIngestionPublishesJob(t *testing.T) {
	pub := &mockPublisher{}
	markID := uuid.NewString()

	pub.On("Publish", mock.Anything, mock.MatchedBy(func(msg *Message) bool {
		job, ok := msg.Body.(IngestionJob)
		return ok && msg.Target == "mark_ingestion" && job.MarkID == markID
	})).Return(nil)

	EnqueueMarkIngestion(context.Background(), pub, "mark_ingestion", markID, observability.NopLogger{})

	pub.AssertExpectations(t)
}

func TestEnqueueMarkIngestionSwallowsPublishFailure(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	// Must not panic or propagate: enqueue is best-effort by contract.
	EnqueueMarkIngestion(context.Background(), pub, "mark_ingestion", uuid.NewString(), observability.NopLogger{})

	pub.AssertExpectations(t)
}

type codedError struct {
	retryable bool
}

func (e *codedError) Error() string   { return "coded" }
func (e *codedError) Retryable() bool { return e.retryable }

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(&codedError{retryable: false}))
	assert.True(t, isRetryable(&codedError{retryable: true}))

	// Wrapped errors keep their retryability.
	wrapped := errors.Join(errors.New("context"), &codedError{retryable: false})
	assert.False(t, isRetryable(wrapped))

	// Unknown errors default to retryable.
	assert.True(t, isRetryable(errors.New("mystery")))
}
