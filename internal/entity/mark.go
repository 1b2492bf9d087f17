// Package entity defines the persisted records of the capture pipeline and
// the legal transitions of their status fields.
package entity

import (
	"time"

	"github.com/lib/pq"
)

// MarkKind describes what a Mark refers to.
type MarkKind string

const (
	MarkKindURL     MarkKind = "url"
	MarkKindNote    MarkKind = "note"
	MarkKindUpload  MarkKind = "upload"
	MarkKindVirtual MarkKind = "virtual"
)

// MarkStatus is the lifecycle state of a Mark.
type MarkStatus string

const (
	MarkStatusPending    MarkStatus = "pending"
	MarkStatusProcessing MarkStatus = "processing"
	MarkStatusSuccess    MarkStatus = "success"
	MarkStatusFailed     MarkStatus = "failed"
)

// Mark is a user-saved reference to be captured. Created by the API layer;
// after creation it is mutated exclusively by the capture worker.
type Mark struct {
	ID     string     `db:"id"`
	UserID string     `db:"user_id"`
	Kind   MarkKind   `db:"kind"`
	Status MarkStatus `db:"status"`

	URL          *string `db:"url"`
	CanonicalURL *string `db:"canonical_url"`
	Title        *string `db:"title"`
	Summary      *string `db:"summary"`
	SourceType   *string `db:"source_type"`

	Tags pq.StringArray `db:"tags"`

	MarkedAt       *time.Time `db:"marked_at"`
	LastAccessedAt *time.Time `db:"last_accessed_at"`
	LastCapturedAt *time.Time `db:"last_captured_at"`

	Error     *string   `db:"error"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CanTransition reports whether a Mark may move between the given statuses.
// Success is sticky: once reached, no transition leaves it. A failed Mark
// may be retried (failed -> processing).
func (s MarkStatus) CanTransition(to MarkStatus) bool {
	if s == to {
		return false
	}
	switch s {
	case MarkStatusPending:
		return to == MarkStatusProcessing || to == MarkStatusSuccess || to == MarkStatusFailed
	case MarkStatusProcessing:
		return to == MarkStatusSuccess || to == MarkStatusFailed
	case MarkStatusFailed:
		return to == MarkStatusProcessing || to == MarkStatusSuccess
	case MarkStatusSuccess:
		return false
	}
	return false
}

// Terminal reports whether the status is an end state for a first attempt.
func (s MarkStatus) Terminal() bool {
	return s == MarkStatusSuccess || s == MarkStatusFailed
}
