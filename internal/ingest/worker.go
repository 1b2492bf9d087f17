// Package ingest implements the capture worker: the consumer-side
// algorithm that turns a queued mark-ingestion job into an Access audit
// row, a stored artifact, and a Capture record, with status transitions
// that never corrupt previously successful state.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/jchook/retrace/internal/entity"
	"github.com/jchook/retrace/internal/fetch"
	"github.com/jchook/retrace/internal/observability"
	"github.com/jchook/retrace/internal/queue"
	"github.com/jchook/retrace/internal/repository"
	"github.com/jchook/retrace/internal/storage"
)

// Fetcher retrieves a URL. Implemented by fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Worker executes ingestion jobs. Multiple worker processes may consume
// concurrently; within one worker, job steps run strictly sequentially.
type Worker struct {
	marks    repository.MarkRepository
	accesses repository.AccessRepository
	captures repository.CaptureRepository
	fetcher  Fetcher
	store    storage.ContentStore
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewWorker wires the capture worker. All collaborators are injected; the
// worker holds no global state.
func NewWorker(
	marks repository.MarkRepository,
	accesses repository.AccessRepository,
	captures repository.CaptureRepository,
	fetcher Fetcher,
	store storage.ContentStore,
	logger observability.Logger,
	metrics observability.Metrics,
) *Worker {
	return &Worker{
		marks:    marks,
		accesses: accesses,
		captures: captures,
		fetcher:  fetcher,
		store:    store,
		logger:   logger.WithFields(map[string]interface{}{"component": "ingest.worker"}),
		metrics:  metrics,
	}
}

// Process runs one ingestion job to completion. Failures before the Access
// row exists (mark missing, no URL) mutate nothing and are non-retryable;
// failures after it are recorded on the Access and Mark rows and re-raised
// so the queue applies its retry policy.
func (w *Worker) Process(ctx context.Context, job queue.IngestionJob) error {
	startTime := time.Now()
	defer func() {
		w.metrics.RecordHistogram("ingest.duration_ms",
			float64(time.Since(startTime).Milliseconds()), nil)
	}()

	w.logger.Info("processing ingestion job", "mark_id", job.MarkID)

	mark, err := w.marks.Get(ctx, job.MarkID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			w.metrics.IncrementCounter("ingest.errors", map[string]string{"code": CodeNotFound})
			return notFoundError(job.MarkID)
		}
		return fmt.Errorf("load mark %s: %w", job.MarkID, err)
	}

	if mark.URL == nil || *mark.URL == "" {
		w.metrics.IncrementCounter("ingest.errors", map[string]string{"code": CodeInvalidInput})
		return invalidInputError(mark.ID)
	}

	access, err := w.accesses.Create(ctx, mark.ID)
	if err != nil {
		return fmt.Errorf("create access for mark %s: %w", mark.ID, err)
	}

	// Declare the attempt in progress. Best effort: the capture outcome,
	// not this transition, decides the final status.
	if mark.Status.CanTransition(entity.MarkStatusProcessing) {
		if err := w.marks.SetStatus(ctx, mark.ID, entity.MarkStatusProcessing); err != nil {
			w.logger.Warn("failed to mark as processing", "mark_id", mark.ID, "error", err)
		}
	}

	if err := w.execute(ctx, mark, access); err != nil {
		return w.failJob(ctx, mark.ID, access.ID, err)
	}

	w.metrics.IncrementCounter("ingest.success", nil)
	w.logger.Info("ingestion job completed",
		"mark_id", mark.ID,
		"access_id", access.ID,
		"duration_ms", time.Since(startTime).Milliseconds())

	return nil
}

// execute performs the fetch/persist sequence for a Mark that has a URL and
// a pending Access.
func (w *Worker) execute(ctx context.Context, mark *entity.Mark, access *entity.Access) error {
	result, err := w.fetcher.Fetch(ctx, *mark.URL)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return canceledError(err)
		}
		return networkError(err)
	}

	headers, err := json.Marshal(result.Headers)
	if err != nil {
		return networkError(fmt.Errorf("serialize response headers: %w", err))
	}

	err = w.accesses.FinalizeSuccess(ctx, access.ID, repository.AccessMeta{
		StatusCode:    result.StatusCode,
		MimeType:      result.MimeType,
		ETag:          result.ETag,
		ContentLength: result.ContentLength,
		Headers:       string(headers),
	})
	if err != nil {
		return fmt.Errorf("finalize access %s: %w", access.ID, err)
	}

	ext := extensionForMimeType(result.MimeType)
	storageKey := captureStorageKey(mark.ID, access.ID, 0, ext)

	if err := w.store.EnsureDir(ctx, path.Dir(storageKey)); err != nil {
		return storageError(err)
	}

	written, err := w.store.Write(ctx, storageKey, bytes.NewReader(result.Body))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return canceledError(err)
		}
		return storageError(err)
	}

	capture := &entity.Capture{
		AccessID:   access.ID,
		Order:      0,
		Role:       entity.CaptureRolePrimary,
		Status:     entity.CaptureStatusSuccess,
		StorageKey: storageKey,
		BytesSize:  &written.BytesWritten,
	}
	if result.MimeType != "" {
		capture.MimeType = &result.MimeType
	}
	if written.Checksum != "" {
		capture.Checksum = &written.Checksum
	}
	if err := w.captures.Create(ctx, capture); err != nil {
		return fmt.Errorf("create capture for access %s: %w", access.ID, err)
	}

	// Success is sticky: only set it if the mark has not reached it yet.
	if mark.Status != entity.MarkStatusSuccess {
		if err := w.marks.SetStatus(ctx, mark.ID, entity.MarkStatusSuccess); err != nil {
			return fmt.Errorf("mark %s as success: %w", mark.ID, err)
		}
	}
	if err := w.marks.TouchCaptureTimes(ctx, mark.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch capture times for mark %s: %w", mark.ID, err)
	}

	w.metrics.RecordHistogram("ingest.capture_bytes", float64(written.BytesWritten), nil)
	return nil
}

// failJob records a failure on the Access and the Mark, then re-raises the
// cause so the queue's retry policy sees it. A Mark that ever reached
// success keeps its status and only has its error text updated.
func (w *Worker) failJob(ctx context.Context, markID, accessID string, cause error) error {
	// The cause may be the job context itself (shutdown, timeout), so the
	// bookkeeping runs on a detached context or it could never succeed.
	ctx = context.WithoutCancel(ctx)

	errText := cause.Error()

	w.metrics.IncrementCounter("ingest.failure", nil)
	w.logger.Error("ingestion job failed",
		"mark_id", markID,
		"access_id", accessID,
		"error", cause)

	// Recording the failure is best effort: the original cause is what
	// gets re-raised, not bookkeeping errors.
	if err := w.accesses.FinalizeFailure(ctx, accessID, errText); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Already finalized (failure struck after the fetch succeeded).
			// The terminal status stays; only the error text updates.
			if err := w.accesses.SetError(ctx, accessID, errText); err != nil {
				w.logger.Error("failed to record access error", "access_id", accessID, "error", err)
			}
		} else {
			w.logger.Error("failed to record access failure", "access_id", accessID, "error", err)
		}
	}

	current, err := w.marks.Get(ctx, markID)
	switch {
	case err != nil:
		w.logger.Error("failed to reload mark after failure", "mark_id", markID, "error", err)
	case current.Status != entity.MarkStatusSuccess:
		if err := w.marks.SetStatusError(ctx, markID, entity.MarkStatusFailed, errText); err != nil {
			w.logger.Error("failed to record mark failure", "mark_id", markID, "error", err)
		}
	default:
		// Sticky success: keep the status, update the error text.
		if err := w.marks.SetError(ctx, markID, errText); err != nil {
			w.logger.Error("failed to record mark error", "mark_id", markID, "error", err)
		}
	}

	return cause
}

// captureStorageKey derives the storage key for a capture artifact. The
// markId/accessId/order derivation guarantees replays never collide.
func captureStorageKey(markID, accessID string, order int, ext string) string {
	return fmt.Sprintf("marks/%s/%s/capture_%d.%s", markID, accessID, order, ext)
}
