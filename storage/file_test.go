package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosscloud/object-replicator/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingReader errors after yielding some bytes, simulating a source stream
// that breaks mid-transfer.
type failingReader struct {
	remaining int
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, fmt.Errorf("%w: connection reset", interfaces.ErrAdapterIO)
	}
	if len(p) > f.remaining {
		p = p[:f.remaining]
	}
	for i := range p {
		p[i] = 'y'
	}
	f.remaining -= len(p)
	return len(p), nil
}

func TestFileAdapter_PutGetRoundTrip(t *testing.T) {
	adapter, err := NewFileAdapter(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	ref := interfaces.ObjectRef{Bucket: "replica-bucket", Key: "nested/dir/hello.txt"}

	written, err := adapter.PutStream(ctx, ref, strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), written)

	rc, err := adapter.GetStream(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
}

func TestFileAdapter_GetStreamMissing(t *testing.T) {
	adapter, err := NewFileAdapter(t.TempDir(), testLogger())
	require.NoError(t, err)

	_, err = adapter.GetStream(context.Background(), interfaces.ObjectRef{Bucket: "b", Key: "missing.txt"})
	assert.ErrorIs(t, err, interfaces.ErrObjectNotFound)
}

func TestFileAdapter_ExistsDeleteLifecycle(t *testing.T) {
	adapter, err := NewFileAdapter(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	ref := interfaces.ObjectRef{Bucket: "replica-bucket", Key: "hello.txt"}

	exists, err := adapter.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = adapter.PutStream(ctx, ref, strings.NewReader("hello world"))
	require.NoError(t, err)

	exists, err = adapter.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, exists)

	deleted, err := adapter.Delete(ctx, ref)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Second delete reports the object as already absent.
	deleted, err = adapter.Delete(ctx, ref)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestFileAdapter_PutStreamAtomic(t *testing.T) {
	tempDir := t.TempDir()
	adapter, err := NewFileAdapter(tempDir, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	ref := interfaces.ObjectRef{Bucket: "replica-bucket", Key: "partial.bin"}

	_, err = adapter.PutStream(ctx, ref, &failingReader{remaining: 100 * 1024})
	assert.ErrorIs(t, err, interfaces.ErrAdapterIO)

	exists, err := adapter.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, exists, "aborted write must not publish a partial object")

	// The staging file is removed as well.
	entries, err := os.ReadDir(filepath.Join(tempDir, "replica-bucket"))
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestFileAdapter_PublishedFileMode(t *testing.T) {
	tempDir := t.TempDir()
	adapter, err := NewFileAdapter(tempDir, testLogger())
	require.NoError(t, err)

	ref := interfaces.ObjectRef{Bucket: "b", Key: "k.txt"}
	_, err = adapter.PutStream(context.Background(), ref, strings.NewReader("x"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(tempDir, "b", "k.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestFileAdapter_OverwriteReplacesContent(t *testing.T) {
	adapter, err := NewFileAdapter(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	ref := interfaces.ObjectRef{Bucket: "b", Key: "k"}

	_, err = adapter.PutStream(ctx, ref, strings.NewReader("first version"))
	require.NoError(t, err)
	_, err = adapter.PutStream(ctx, ref, strings.NewReader("second"))
	require.NoError(t, err)

	rc, err := adapter.GetStream(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestFileAdapter_KeySanitization(t *testing.T) {
	tempDir := t.TempDir()
	adapter, err := NewFileAdapter(tempDir, testLogger())
	require.NoError(t, err)

	ctx := context.Background()

	// Traversal segments are neutralized, not followed: the object lands
	// inside the bucket directory.
	ref := interfaces.ObjectRef{Bucket: "b", Key: "../../escape.txt"}
	_, err = adapter.PutStream(ctx, ref, strings.NewReader("x"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(tempDir, "b", "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(tempDir), "escape.txt"))
	assert.True(t, os.IsNotExist(err), "object must not escape the storage root")

	// Keys and buckets that cannot be represented are rejected.
	tests := []struct {
		name string
		ref  interfaces.ObjectRef
	}{
		{name: "key collapsing to nothing", ref: interfaces.ObjectRef{Bucket: "b", Key: ".."}},
		{name: "bucket with separator", ref: interfaces.ObjectRef{Bucket: "a/b", Key: "k"}},
		{name: "dotdot bucket", ref: interfaces.ObjectRef{Bucket: "..", Key: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := adapter.PutStream(ctx, tt.ref, strings.NewReader("x"))
			assert.ErrorIs(t, err, interfaces.ErrInvalidRequest)
		})
	}
}

func TestFileAdapter_List(t *testing.T) {
	adapter, err := NewFileAdapter(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	seed := map[string]string{
		"a.txt":        "aa",
		"nested/b.txt": "bbbb",
		"nested/c.txt": "c",
	}
	for key, content := range seed {
		_, err := adapter.PutStream(ctx, interfaces.ObjectRef{Bucket: "replica-bucket", Key: key}, strings.NewReader(content))
		require.NoError(t, err)
	}
	// An object in another bucket must not show up.
	_, err = adapter.PutStream(ctx, interfaces.ObjectRef{Bucket: "other", Key: "d.txt"}, strings.NewReader("d"))
	require.NoError(t, err)

	objects, err := adapter.List(ctx, "replica-bucket")
	require.NoError(t, err)
	assert.Equal(t, []interfaces.ObjectInfo{
		{Key: "a.txt", Size: 2},
		{Key: "nested/b.txt", Size: 4},
		{Key: "nested/c.txt", Size: 1},
	}, objects)

	objects, err = adapter.List(ctx, "absent-bucket")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestFileAdapter_Available(t *testing.T) {
	tempDir := t.TempDir()
	adapter, err := NewFileAdapter(tempDir, testLogger())
	require.NoError(t, err)

	assert.True(t, adapter.Available(context.Background()))

	require.NoError(t, os.RemoveAll(tempDir))
	assert.False(t, adapter.Available(context.Background()))
}
