package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jchook/retrace/internal/entity"
	"github.com/jchook/retrace/internal/observability"
)

type mockDocumentRepo struct {
	mock.Mock
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func newTestService(t *testing.T, docs *mockDocumentRepo) *Service {
	t.Helper()
	svc, err := NewService(t.TempDir(), docs, observability.NopLogger{}, observability.NopMetrics{})
	require.NoError(t, err)
	return svc
}

func TestSaveStoresFileAndRecord(t *testing.T) {
	docs := &mockDocumentRepo{}
	svc := newTestService(t, docs)

	body := []byte("archived page snapshot")
	sum := sha256.Sum256(body)
	wantChecksum := hex.EncodeToString(sum[:])

	docs.On("Create", mock.Anything, mock.MatchedBy(func(d *entity.Document) bool {
		return d.ItemID == 42 &&
			d.Size == int64(len(body)) &&
			d.StorageType == entity.StorageTypeLocal &&
			d.MimeType != nil && *d.MimeType == "application/pdf"
	})).Return(nil).Once()

	stored, err := svc.Save(context.Background(), Input{
		Reader:   strings.NewReader(string(body)),
		Filename: "article.pdf",
		MimeType: "application/pdf",
		ItemID:   42,
	})
	require.NoError(t, err)

	assert.Equal(t, wantChecksum, stored.Checksum)
	assert.Equal(t, wantChecksum[:12]+"_article.pdf", stored.Document.Filename)
	assert.Equal(t, filepath.Join(svc.root, "42", stored.Document.Filename), stored.StoragePath)

	onDisk, err := os.ReadFile(stored.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, body, onDisk)

	docs.AssertExpectations(t)
}

func TestSaveWithoutFilename(t *testing.T) {
	docs := &mockDocumentRepo{}
	svc := newTestService(t, docs)

	docs.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	stored, err := svc.Save(context.Background(), Input{
		Reader: strings.NewReader("x"),
		ItemID: 1,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Document.Filename, "_unnamed"))
	assert.Nil(t, stored.Document.MimeType)
}

func TestSaveRecordFailureKeepsNoRow(t *testing.T) {
	docs := &mockDocumentRepo{}
	svc := newTestService(t, docs)

	docs.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	_, err := svc.Save(context.Background(), Input{
		Reader:   strings.NewReader("data"),
		Filename: "a.txt",
		ItemID:   7,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record document")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("stream broke") }

func TestSaveStreamFailureLeavesNoTempFile(t *testing.T) {
	docs := &mockDocumentRepo{}
	svc := newTestService(t, docs)

	_, err := svc.Save(context.Background(), Input{
		Reader:   failingReader{},
		Filename: "a.txt",
		ItemID:   7,
	})
	require.Error(t, err)

	entries, err := os.ReadDir(svc.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files must be cleaned up")
	docs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSaveIdempotentItemDir(t *testing.T) {
	docs := &mockDocumentRepo{}
	svc := newTestService(t, docs)
	docs.On("Create", mock.Anything, mock.Anything).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		_, err := svc.Save(context.Background(), Input{
			Reader:   strings.NewReader(fmt.Sprintf("body-%d", i)),
			Filename: fmt.Sprintf("doc-%d.txt", i),
			ItemID:   5,
		})
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(filepath.Join(svc.root, "5"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBuildFilenameBounds(t *testing.T) {
	checksum := strings.Repeat("ab", 32)

	tests := []struct {
		name string
		base string
		ext  string
	}{
		{"short", "article", ".pdf"},
		{"long ascii", strings.Repeat("x", 400), ".pdf"},
		{"long multibyte", strings.Repeat("é", 300), ".html"},
		{"no extension", strings.Repeat("y", 300), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildFilename(checksum, tt.base, tt.ext)
			assert.LessOrEqual(t, len(got), 255)
			assert.True(t, strings.HasPrefix(got, checksum[:12]+"_"))
			assert.True(t, strings.HasSuffix(got, tt.ext))
		})
	}
}

func TestTruncateBytesRuneSafe(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes per rune
	got := truncateBytes(s, 5)
	assert.LessOrEqual(t, len(got), 5)
	assert.Equal(t, strings.Repeat("é", 2), got)
}
