// Package upload implements the synchronous document-upload path: an
// uploaded file streams through the hashing pipe into a temporary file,
// then commits atomically to content-addressed storage before its record
// is persisted.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jchook/retrace/internal/entity"
	"github.com/jchook/retrace/internal/observability"
	"github.com/jchook/retrace/internal/repository"
	"github.com/jchook/retrace/internal/storage"
)

// maxFilenameBytes is the commit-time bound on the final filename,
// hash prefix and extension included.
const maxFilenameBytes = 255

// checksumPrefixLen is how many hex characters of the digest prefix the
// final filename.
const checksumPrefixLen = 12

// Input describes one uploaded file part.
type Input struct {
	Reader   io.Reader
	Filename string
	MimeType string
	ItemID   int64
}

// StoredDocument is the committed result of an upload.
type StoredDocument struct {
	Document    *entity.Document
	Checksum    string // full hex SHA-256 of the stored bytes
	StoragePath string
}

// Service stores uploaded documents under a root directory and records
// them once the file is durably in place.
type Service struct {
	root      string
	documents repository.DocumentRepository
	logger    observability.Logger
	metrics   observability.Metrics
}

// NewService creates an upload service rooted at the given directory.
func NewService(root string, documents repository.DocumentRepository, logger observability.Logger, metrics observability.Metrics) (*Service, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &Service{
		root:      root,
		documents: documents,
		logger:    logger.WithFields(map[string]interface{}{"component": "upload"}),
		metrics:   metrics,
	}, nil
}

// Save streams the part into storage and persists its Document record.
// The record is inserted only after the atomic rename succeeded, so a
// failure at any earlier point leaves no database row and no final file.
func (s *Service) Save(ctx context.Context, in Input) (*StoredDocument, error) {
	start := time.Now()
	s.metrics.IncrementCounter("upload.attempts", nil)

	originalName := in.Filename
	if originalName == "" {
		originalName = "unnamed"
	}
	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(filepath.Base(originalName), ext)

	// Timestamp plus random token keeps concurrent uploads collision-free.
	tmpPath := filepath.Join(s.root, "tmp-"+strconv.FormatInt(time.Now().UnixNano(), 10)+"-"+uuid.NewString())

	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		s.metrics.IncrementCounter("upload.errors", map[string]string{"error": "create_tmp"})
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	hw := storage.NewHashingWriter(tmpFile)
	_, copyErr := io.Copy(hw, in.Reader)
	if copyErr == nil {
		copyErr = tmpFile.Sync()
	}
	if closeErr := tmpFile.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(tmpPath)
		s.logger.Error("failed to stream upload", "filename", originalName, "error", copyErr)
		s.metrics.IncrementCounter("upload.errors", map[string]string{"error": "stream"})
		return nil, fmt.Errorf("failed to stream upload: %w", copyErr)
	}

	checksum := hw.Sum()
	finalName := buildFilename(checksum, base, ext)

	itemDir := filepath.Join(s.root, strconv.FormatInt(in.ItemID, 10))
	if err := os.MkdirAll(itemDir, 0o755); err != nil {
		os.Remove(tmpPath)
		s.metrics.IncrementCounter("upload.errors", map[string]string{"error": "mkdir"})
		return nil, fmt.Errorf("failed to create item directory: %w", err)
	}

	finalPath := filepath.Join(itemDir, finalName)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		s.metrics.IncrementCounter("upload.errors", map[string]string{"error": "rename"})
		return nil, fmt.Errorf("failed to finalize upload: %w", err)
	}

	doc := &entity.Document{
		ItemID:      in.ItemID,
		Filename:    finalName,
		Size:        hw.BytesWritten(),
		StoragePath: finalPath,
		StorageType: entity.StorageTypeLocal,
	}
	if in.MimeType != "" {
		doc.MimeType = &in.MimeType
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		s.metrics.IncrementCounter("upload.errors", map[string]string{"error": "record"})
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	s.logger.Info("document stored",
		"item_id", in.ItemID,
		"filename", finalName,
		"bytes", doc.Size,
		"duration_ms", time.Since(start).Milliseconds())
	s.metrics.IncrementCounter("upload.success", nil)
	s.metrics.RecordHistogram("upload.bytes", float64(doc.Size), nil)

	return &StoredDocument{
		Document:    doc,
		Checksum:    checksum,
		StoragePath: finalPath,
	}, nil
}

// buildFilename assembles {hash12}_{base}{ext}, truncating the base so the
// whole name stays within the filesystem's 255-byte limit while the
// extension is preserved intact.
func buildFilename(checksum, base, ext string) string {
	prefix := checksum[:checksumPrefixLen] + "_"
	maxBase := maxFilenameBytes - len(prefix) - len(ext)
	return prefix + truncateBytes(base, maxBase) + ext
}

// truncateBytes cuts s to at most n bytes without splitting a UTF-8 rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n < 0 {
		return ""
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
