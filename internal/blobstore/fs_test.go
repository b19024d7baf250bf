package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir(), "http://localhost:8080/media")
	require.NoError(t, err)
	return fs
}

func TestFSSave(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	t.Run("multi-segment path keeps its separators in the URL", func(t *testing.T) {
		url, err := fs.Save(ctx, "avatars/u1.png", strings.NewReader("png-bytes"))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/media/avatars/u1.png", url)

		data, err := os.ReadFile(filepath.Join(fs.rootPath, "avatars", "u1.png"))
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(data))
	})

	t.Run("reserved characters are escaped per segment", func(t *testing.T) {
		url, err := fs.Save(ctx, "avatars/u 1.png", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/media/avatars/u%201.png", url)
	})

	t.Run("traversal is stripped", func(t *testing.T) {
		url, err := fs.Save(ctx, "../../etc/passwd", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/media/etc/passwd", url)
		_, err = os.Stat(filepath.Join(fs.rootPath, "etc", "passwd"))
		assert.NoError(t, err, "file must land inside the root")
	})

	t.Run("empty path is rejected", func(t *testing.T) {
		_, err := fs.Save(ctx, "", strings.NewReader("x"))
		assert.Error(t, err)
	})
}

func TestFSDelete(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Save(ctx, "avatars/u1.png", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, fs.Delete(ctx, "avatars/u1.png"))
	_, err = os.Stat(filepath.Join(fs.rootPath, "avatars", "u1.png"))
	assert.True(t, os.IsNotExist(err))

	t.Run("deleting a missing blob is a no-op", func(t *testing.T) {
		assert.NoError(t, fs.Delete(ctx, "avatars/u1.png"))
	})
}
