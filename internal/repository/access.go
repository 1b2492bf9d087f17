package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/jchook/retrace/internal/database"
	"github.com/jchook/retrace/internal/entity"
	"github.com/jchook/retrace/internal/observability"
)

// AccessMeta carries the response metadata captured by a successful fetch.
type AccessMeta struct {
	StatusCode    int
	MimeType      string
	ETag          string
	ContentLength int64
	Headers       string // JSON-serialized response headers
}

// AccessRepository stores retrieval attempts. An Access is created pending
// at the start of a job and finalized exactly once at the end.
type AccessRepository interface {
	// Create inserts a pending Access owned by the given Mark and returns it.
	Create(ctx context.Context, markID string) (*entity.Access, error)

	Get(ctx context.Context, id string) (*entity.Access, error)

	// FinalizeSuccess moves a pending Access to success with the fetch metadata.
	FinalizeSuccess(ctx context.Context, id string, meta AccessMeta) error

	// FinalizeFailure moves a pending Access to failed with the error text.
	FinalizeFailure(ctx context.Context, id string, errText string) error

	// SetError updates only the error text. Finalized rows stay otherwise
	// immutable, so this is the one mutation allowed after a terminal status.
	SetError(ctx context.Context, id string, errText string) error
}

type accessRepository struct {
	base
}

// NewAccessRepository creates an AccessRepository backed by the accesses table.
func NewAccessRepository(db *database.DB, logger observability.Logger, metrics observability.Metrics) AccessRepository {
	return &accessRepository{base: newBase(db, logger, metrics, "accesses")}
}

func (r *accessRepository) Create(ctx context.Context, markID string) (*entity.Access, error) {
	r.countOp("create")

	access := &entity.Access{
		ID:         uuid.NewString(),
		MarkID:     markID,
		Status:     entity.AccessStatusPending,
		AccessedAt: time.Now().UTC(),
	}

	query := r.qb.Insert(r.table).
		Columns("id", "mark_id", "status", "accessed_at").
		Values(access.ID, access.MarkID, access.Status, access.AccessedAt)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sqlQuery, args...); err != nil {
		r.countError("create")
		return nil, fmt.Errorf("create access: %w", err)
	}
	return access, nil
}

func (r *accessRepository) Get(ctx context.Context, id string) (*entity.Access, error) {
	r.countOp("get")

	query := r.qb.Select("*").From(r.table).Where(squirrel.Eq{"id": id})
	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var access entity.Access
	err = r.db.Get(ctx, &access, sqlQuery, args...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.countError("get")
		return nil, fmt.Errorf("get access: %w", err)
	}
	return &access, nil
}

func (r *accessRepository) FinalizeSuccess(ctx context.Context, id string, meta AccessMeta) error {
	r.countOp("finalize_success")

	query := r.qb.Update(r.table).
		Set("status", entity.AccessStatusSuccess).
		Set("status_code", meta.StatusCode).
		Set("content_length", meta.ContentLength).
		Set("headers", meta.Headers)

	// Nullable metadata is written only when present.
	if meta.MimeType != "" {
		query = query.Set("mime_type", meta.MimeType)
	}
	if meta.ETag != "" {
		query = query.Set("etag", meta.ETag)
	}

	return r.finalize(ctx, id, query)
}

func (r *accessRepository) FinalizeFailure(ctx context.Context, id string, errText string) error {
	r.countOp("finalize_failure")

	return r.finalize(ctx, id, r.qb.Update(r.table).
		Set("status", entity.AccessStatusFailed).
		Set("error", errText))
}

func (r *accessRepository) SetError(ctx context.Context, id string, errText string) error {
	r.countOp("set_error")

	sqlQuery, args, err := r.qb.Update(r.table).
		Set("error", errText).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	result, err := r.db.Exec(ctx, sqlQuery, args...)
	if err != nil {
		r.countError("set_error")
		return fmt.Errorf("set access error: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// finalize applies a terminal update. The pending guard keeps finalized
// rows immutable even if two workers race on a redelivered job.
func (r *accessRepository) finalize(ctx context.Context, id string, query squirrel.UpdateBuilder) error {
	sqlQuery, args, err := query.
		Where(squirrel.Eq{"id": id, "status": entity.AccessStatusPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	result, err := r.db.Exec(ctx, sqlQuery, args...)
	if err != nil {
		r.countError("finalize")
		return fmt.Errorf("finalize access: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}
