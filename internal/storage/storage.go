// Package storage provides the content store used by the capture worker
// and the upload path: byte storage addressed by hierarchical keys, with
// atomic writes and content hashing.
package storage

import (
	"context"
	"io"
)

// WriteResult describes a completed write. Checksum and BytesWritten
// reflect exactly the bytes that reached durable storage.
type WriteResult struct {
	BytesWritten int64
	Checksum     string // hex-encoded SHA-256
}

// ContentStore is byte storage addressed by slash-separated keys.
type ContentStore interface {
	// EnsureDir creates the directory for the given key prefix if absent.
	// Safe under concurrent invocation.
	EnsureDir(ctx context.Context, dir string) error

	// Write stores the reader's bytes under key atomically: a failure
	// mid-stream never leaves a partially written object at the final key.
	Write(ctx context.Context, key string, r io.Reader) (WriteResult, error)

	// Open returns a reader over a stored object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is present at key.
	Exists(ctx context.Context, key string) (bool, error)
}
