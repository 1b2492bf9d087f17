// Package fs implements storage.ContentStore on the local filesystem.
// Writes go to a uniquely named temporary file first and are renamed into
// place, so a mid-stream failure never leaves a partial object at the
// final key.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jchook/retrace/internal/observability"
	"github.com/jchook/retrace/internal/storage"
)

// Store implements storage.ContentStore rooted at a base directory.
type Store struct {
	root    string
	logger  observability.Logger
	metrics observability.Metrics
}

// NewStore creates a filesystem content store, creating the root directory
// if absent.
func NewStore(root string, logger observability.Logger, metrics observability.Metrics) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		logger.Error("failed to create storage root", "path", root, "error", err)
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	logger.Info("filesystem content store initialized", "root", root)

	return &Store{
		root:    root,
		logger:  logger.WithFields(map[string]interface{}{"component": "fs_store"}),
		metrics: metrics.WithTags(map[string]string{"storage": "fs"}),
	}, nil
}

// Root returns the base directory of the store.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) EnsureDir(ctx context.Context, dir string) error {
	path := s.abs(dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		s.metrics.IncrementCounter("storage.ensure_dir.errors", nil)
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func (s *Store) Write(ctx context.Context, key string, r io.Reader) (storage.WriteResult, error) {
	start := time.Now()
	s.metrics.IncrementCounter("storage.write.attempts", nil)

	finalPath := s.abs(key)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		s.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "mkdir"})
		return storage.WriteResult{}, fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	// Unique temp name so concurrent writers of the same key never clash.
	tmpPath := finalPath + ".tmp-" + uuid.NewString()

	file, err := os.Create(tmpPath)
	if err != nil {
		s.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "create"})
		return storage.WriteResult{}, fmt.Errorf("failed to create temp file: %w", err)
	}

	hw := storage.NewHashingWriter(file)
	_, copyErr := io.Copy(hw, r)

	if copyErr == nil {
		copyErr = file.Sync()
	}
	if closeErr := file.Close(); copyErr == nil {
		copyErr = closeErr
	}

	if copyErr != nil {
		os.Remove(tmpPath)
		s.logger.Error("failed to write object", "key", key, "error", copyErr)
		s.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "write"})
		return storage.WriteResult{}, fmt.Errorf("failed to write object %s: %w", key, copyErr)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		s.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "rename"})
		return storage.WriteResult{}, fmt.Errorf("failed to finalize object %s: %w", key, err)
	}

	result := storage.WriteResult{
		BytesWritten: hw.BytesWritten(),
		Checksum:     hw.Sum(),
	}

	duration := time.Since(start)
	s.logger.Info("object stored",
		"key", key,
		"bytes", result.BytesWritten,
		"duration_ms", duration.Milliseconds())
	s.metrics.IncrementCounter("storage.write.success", nil)
	s.metrics.RecordHistogram("storage.write.bytes", float64(result.BytesWritten), nil)
	s.metrics.RecordHistogram("storage.write.duration_ms", float64(duration.Milliseconds()), nil)

	return result, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.abs(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open object %s: %w", key, err)
	}
	return file, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.abs(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// abs maps a slash-separated key to a path under the root. The key is
// cleaned as a rooted path first, so ".." segments cannot climb out of
// the root directory.
func (s *Store) abs(key string) string {
	key = path.Clean("/" + key)
	return filepath.Join(s.root, filepath.FromSlash(key))
}
