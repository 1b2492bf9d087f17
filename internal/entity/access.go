package entity

import "time"

// AccessStatus is the lifecycle state of a retrieval attempt.
type AccessStatus string

const (
	AccessStatusPending    AccessStatus = "pending"
	AccessStatusSuccess    AccessStatus = "success"
	AccessStatusFailed     AccessStatus = "failed"
	AccessStatusIncomplete AccessStatus = "incomplete"
)

// Access records one retrieval attempt against a Mark's URL. Exactly one is
// created per job execution. Once finalized to success or failed it is
// immutable except for the error text.
type Access struct {
	ID     string       `db:"id"`
	MarkID string       `db:"mark_id"`
	Status AccessStatus `db:"status"`

	StatusCode    *int    `db:"status_code"`
	MimeType      *string `db:"mime_type"`
	ETag          *string `db:"etag"`
	ContentLength *int64  `db:"content_length"`

	// Headers is the JSON-serialized response header map.
	Headers *string `db:"headers"`

	Error      *string   `db:"error"`
	AccessedAt time.Time `db:"accessed_at"`
}

// CanTransition reports whether an Access may move between the given
// statuses. Only pending is non-terminal.
func (s AccessStatus) CanTransition(to AccessStatus) bool {
	if s != AccessStatusPending || to == s {
		return false
	}
	switch to {
	case AccessStatusSuccess, AccessStatusFailed, AccessStatusIncomplete:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s AccessStatus) Terminal() bool {
	return s != AccessStatusPending
}
