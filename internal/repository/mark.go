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

// MarkRepository stores Marks. The worker only reads and updates status,
// error, and capture timestamps; creation belongs to the API layer.
type MarkRepository interface {
	Create(ctx context.Context, mark *entity.Mark) error
	Get(ctx context.Context, id string) (*entity.Mark, error)

	// SetStatus updates the status field alone.
	SetStatus(ctx context.Context, id string, status entity.MarkStatus) error

	// SetStatusError updates status and error text together.
	SetStatusError(ctx context.Context, id string, status entity.MarkStatus, errText string) error

	// SetError updates the error text without touching status. Used when a
	// Mark that already reached success fails a later ingestion attempt.
	SetError(ctx context.Context, id string, errText string) error

	// TouchCaptureTimes refreshes last_accessed_at and last_captured_at.
	TouchCaptureTimes(ctx context.Context, id string, at time.Time) error
}

type markRepository struct {
	base
}

// NewMarkRepository creates a MarkRepository backed by the marks table.
func NewMarkRepository(db *database.DB, logger observability.Logger, metrics observability.Metrics) MarkRepository {
	return &markRepository{base: newBase(db, logger, metrics, "marks")}
}

func (r *markRepository) Create(ctx context.Context, mark *entity.Mark) error {
	r.countOp("create")

	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mark.MarkedAt == nil {
		mark.MarkedAt = &now
	}
	mark.CreatedAt = now
	mark.UpdatedAt = now
	if mark.Kind == "" {
		mark.Kind = entity.MarkKindURL
	}
	if mark.Status == "" {
		mark.Status = entity.MarkStatusPending
	}

	sqlQuery, args, err := r.insertQuery(mark).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sqlQuery, args...); err != nil {
		r.countError("create")
		return fmt.Errorf("create mark: %w", err)
	}
	return nil
}

func (r *markRepository) insertQuery(mark *entity.Mark) squirrel.InsertBuilder {
	return r.qb.Insert(r.table).
		Columns("id", "user_id", "kind", "status", "url", "canonical_url",
			"title", "summary", "source_type", "tags", "marked_at", "created_at", "updated_at").
		Values(mark.ID, mark.UserID, mark.Kind, mark.Status, mark.URL, mark.CanonicalURL,
			mark.Title, mark.Summary, mark.SourceType, mark.Tags, mark.MarkedAt, mark.CreatedAt, mark.UpdatedAt)
}

func (r *markRepository) Get(ctx context.Context, id string) (*entity.Mark, error) {
	r.countOp("get")

	query := r.qb.Select("*").From(r.table).Where(squirrel.Eq{"id": id})
	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var mark entity.Mark
	err = r.db.Get(ctx, &mark, sqlQuery, args...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.countError("get")
		return nil, fmt.Errorf("get mark: %w", err)
	}
	return &mark, nil
}

func (r *markRepository) SetStatus(ctx context.Context, id string, status entity.MarkStatus) error {
	r.countOp("set_status")
	return r.update(ctx, id, guardSticky(r.qb.Update(r.table).
		Set("status", status).
		Set("updated_at", time.Now().UTC()), status))
}

func (r *markRepository) SetStatusError(ctx context.Context, id string, status entity.MarkStatus, errText string) error {
	r.countOp("set_status_error")
	return r.update(ctx, id, guardSticky(r.qb.Update(r.table).
		Set("status", status).
		Set("error", errText).
		Set("updated_at", time.Now().UTC()), status))
}

// guardSticky enforces sticky success at the row level: a status update
// moving anywhere other than success only applies while the row has not
// reached success. Concurrent jobs on the same mark can otherwise race a
// stale in-memory read into a downgrade.
func guardSticky(query squirrel.UpdateBuilder, to entity.MarkStatus) squirrel.UpdateBuilder {
	if to == entity.MarkStatusSuccess {
		return query
	}
	return query.Where(squirrel.NotEq{"status": entity.MarkStatusSuccess})
}

func (r *markRepository) SetError(ctx context.Context, id string, errText string) error {
	r.countOp("set_error")
	return r.update(ctx, id, r.qb.Update(r.table).
		Set("error", errText).
		Set("updated_at", time.Now().UTC()))
}

func (r *markRepository) TouchCaptureTimes(ctx context.Context, id string, at time.Time) error {
	r.countOp("touch_capture_times")
	return r.update(ctx, id, r.qb.Update(r.table).
		Set("last_accessed_at", at).
		Set("last_captured_at", at).
		Set("updated_at", time.Now().UTC()))
}

func (r *markRepository) update(ctx context.Context, id string, query squirrel.UpdateBuilder) error {
	sqlQuery, args, err := query.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	result, err := r.db.Exec(ctx, sqlQuery, args...)
	if err != nil {
		r.countError("update")
		return fmt.Errorf("update mark: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}
