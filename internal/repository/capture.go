package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/jchook/retrace/internal/database"
	"github.com/jchook/retrace/internal/entity"
	"github.com/jchook/retrace/internal/observability"
)

// CaptureRepository stores persisted artifacts. Rows are append-only; there
// is deliberately no update method.
type CaptureRepository interface {
	Create(ctx context.Context, capture *entity.Capture) error
	ListByAccess(ctx context.Context, accessID string) ([]*entity.Capture, error)
}

type captureRepository struct {
	base
}

// NewCaptureRepository creates a CaptureRepository backed by the captures table.
func NewCaptureRepository(db *database.DB, logger observability.Logger, metrics observability.Metrics) CaptureRepository {
	return &captureRepository{base: newBase(db, logger, metrics, "captures")}
}

func (r *captureRepository) Create(ctx context.Context, capture *entity.Capture) error {
	r.countOp("create")

	if capture.ID == "" {
		capture.ID = uuid.NewString()
	}
	if capture.CreatedAt.IsZero() {
		capture.CreatedAt = time.Now().UTC()
	}

	query := r.qb.Insert(r.table).
		Columns("id", "access_id", "ord", "role", "status", "mime_type",
			"storage_key", "bytes_size", "checksum", "created_at").
		Values(capture.ID, capture.AccessID, capture.Order, capture.Role, capture.Status,
			capture.MimeType, capture.StorageKey, capture.BytesSize, capture.Checksum, capture.CreatedAt)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sqlQuery, args...); err != nil {
		r.countError("create")
		return fmt.Errorf("create capture: %w", err)
	}
	return nil
}

func (r *captureRepository) ListByAccess(ctx context.Context, accessID string) ([]*entity.Capture, error) {
	r.countOp("list_by_access")

	query := r.qb.Select("*").
		From(r.table).
		Where(squirrel.Eq{"access_id": accessID}).
		OrderBy("ord ASC")

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var captures []entity.Capture
	if err := r.db.Select(ctx, &captures, sqlQuery, args...); err != nil {
		r.countError("list_by_access")
		return nil, fmt.Errorf("list captures: %w", err)
	}

	result := make([]*entity.Capture, len(captures))
	for i := range captures {
		result[i] = &captures[i]
	}
	return result, nil
}
