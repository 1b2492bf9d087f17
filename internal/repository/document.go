package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jchook/retrace/internal/database"
	"github.com/jchook/retrace/internal/entity"
	"github.com/jchook/retrace/internal/observability"
)

// DocumentRepository stores uploaded document records. A row is inserted
// only after the file's atomic rename into final storage succeeded.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
}

type documentRepository struct {
	base
}

// NewDocumentRepository creates a DocumentRepository backed by the documents table.
func NewDocumentRepository(db *database.DB, logger observability.Logger, metrics observability.Metrics) DocumentRepository {
	return &documentRepository{base: newBase(db, logger, metrics, "documents")}
}

func (r *documentRepository) Create(ctx context.Context, doc *entity.Document) error {
	r.countOp("create")

	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.StorageType == "" {
		doc.StorageType = entity.StorageTypeLocal
	}

	query := r.qb.Insert(r.table).
		Columns("item_id", "filename", "mimetype", "size", "storage_path", "storage_type", "uploaded_at").
		Values(doc.ItemID, doc.Filename, doc.MimeType, doc.Size, doc.StoragePath, doc.StorageType, doc.UploadedAt).
		Suffix("RETURNING id")

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sqlQuery, args...).Scan(&doc.ID); err != nil {
		r.countError("create")
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}
