package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchook/retrace/internal/observability"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), observability.NopLogger{}, observability.NopMetrics{})
	require.NoError(t, err)
	return store
}

func TestWriteAndOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	body := []byte("<html>hello</html>")
	result, err := store.Write(ctx, "marks/m1/a1/capture_0.html", strings.NewReader(string(body)))
	require.NoError(t, err)

	assert.Equal(t, int64(len(body)), result.BytesWritten)
	expected := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(expected[:]), result.Checksum)

	rc, err := store.Open(ctx, "marks/m1/a1/capture_0.html")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestWriteLeavesNoPartialFileOnFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reader := io.MultiReader(
		strings.NewReader("partial content"),
		&failingReader{},
	)

	_, err := store.Write(ctx, "marks/m1/a1/capture_0.bin", reader)
	require.Error(t, err)

	// Neither the final file nor any temp file may remain.
	exists, err := store.Exists(ctx, "marks/m1/a1/capture_0.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := os.ReadDir(filepath.Join(store.Root(), "marks", "m1", "a1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteIsAtomicPerKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Two writes to the same key use distinct temp names; the second
	// replaces the first without a read-visible intermediate state.
	_, err := store.Write(ctx, "k/capture_0.txt", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = store.Write(ctx, "k/capture_0.txt", strings.NewReader("second"))
	require.NoError(t, err)

	rc, err := store.Open(ctx, "k/capture_0.txt")
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "second", string(got))
}

func TestEnsureDirIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureDir(ctx, "marks/m1/a1"))
	require.NoError(t, store.EnsureDir(ctx, "marks/m1/a1"))

	info, err := os.Stat(filepath.Join(store.Root(), "marks", "m1", "a1"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Write(ctx, "yep", strings.NewReader("x"))
	require.NoError(t, err)

	exists, err = store.Exists(ctx, "yep")
	require.NoError(t, err)
	assert.True(t, exists)
}

// Keys with ".." segments must resolve inside the root, never above it.
func TestKeysCannotEscapeRoot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{
		"../../escape.bin",
		"a/../../../escape.bin",
		"/../escape.bin",
	} {
		assert.True(t, strings.HasPrefix(store.abs(key), store.Root()+string(filepath.Separator)),
			"key %q resolved outside the root", key)
	}

	_, err := store.Write(ctx, "../escape.bin", strings.NewReader("x"))
	require.NoError(t, err)

	// The object landed under the root, not beside it.
	exists, err := store.Exists(ctx, "escape.bin")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = os.Stat(filepath.Join(filepath.Dir(store.Root()), "escape.bin"))
	assert.True(t, os.IsNotExist(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}
