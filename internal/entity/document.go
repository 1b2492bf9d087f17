package entity

import "time"

// StorageType says where a document's bytes live.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// Document is an uploaded file committed to content-addressed storage.
// Created synchronously during upload, after the atomic rename succeeds;
// immutable afterward.
type Document struct {
	ID          int64       `db:"id"`
	ItemID      int64       `db:"item_id"`
	Filename    string      `db:"filename"`
	MimeType    *string     `db:"mimetype"`
	Size        int64       `db:"size"`
	StoragePath string      `db:"storage_path"`
	StorageType StorageType `db:"storage_type"`
	UploadedAt  time.Time   `db:"uploaded_at"`
}
