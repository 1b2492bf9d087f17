package entity

import "time"

// CaptureRole distinguishes the artifacts produced by one Access.
type CaptureRole string

const (
	CaptureRolePrimary   CaptureRole = "primary"
	CaptureRoleImage     CaptureRole = "image"
	CaptureRoleVideo     CaptureRole = "video"
	CaptureRoleMeta      CaptureRole = "meta"
	CaptureRoleAuxiliary CaptureRole = "auxiliary"
)

// CaptureStatus is the state of a persisted artifact. Captures are created
// already resolved: a failed fetch produces no Capture row, so "pending" is
// only a column default.
type CaptureStatus string

const (
	CaptureStatusPending CaptureStatus = "pending"
	CaptureStatusSuccess CaptureStatus = "success"
	CaptureStatusFailed  CaptureStatus = "failed"
)

// Capture is one persisted artifact produced by an Access. Rows are
// append-only and never updated after creation. StorageKey is derived from
// markId/accessId/order so replays never collide path-wise.
type Capture struct {
	ID       string        `db:"id"`
	AccessID string        `db:"access_id"`
	Order    int           `db:"ord"`
	Role     CaptureRole   `db:"role"`
	Status   CaptureStatus `db:"status"`

	MimeType   *string `db:"mime_type"`
	StorageKey string  `db:"storage_key"`
	BytesSize  *int64  `db:"bytes_size"`
	Checksum   *string `db:"checksum"`

	CreatedAt time.Time `db:"created_at"`
}
