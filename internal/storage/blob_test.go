package storage

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_PutExistsDelete(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFSStore(fs)
	ctx := context.Background()

	n, err := store.Put(ctx, "app-1/rib_1700000000000.pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)

	ok, err := store.Exists(ctx, "app-1/rib_1700000000000.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := afero.ReadFile(fs, "app-1/rib_1700000000000.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))

	_, err = store.Put(ctx, "app-1/rib_1700000000000.pdf", strings.NewReader("again"))
	assert.Error(t, err, "keys are never overwritten")

	require.NoError(t, store.Delete(ctx, "app-1/rib_1700000000000.pdf"))
	require.NoError(t, store.Delete(ctx, "app-1/rib_1700000000000.pdf"), "deleting twice is fine")
	ok, err = store.Exists(ctx, "app-1/rib_1700000000000.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFSStore_RejectsTraversal(t *testing.T) {
	store := NewFSStore(afero.NewMemMapFs())
	for _, key := range []string{"", "../etc/passwd", "/abs/key", "a/../../b"} {
		_, err := store.Put(context.Background(), key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		_, err = store.Open(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFSStore_CancelledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFSStore(fs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, "a/b.png", strings.NewReader("data"))
	require.Error(t, err)
	ok, _ := afero.Exists(fs, "a/b.png")
	assert.False(t, ok, "partial blob is removed")
}

func TestFSStore_OpenFilesOnly(t *testing.T) {
	store := NewFSStore(afero.NewMemMapFs())
	ctx := context.Background()
	_, err := store.Put(ctx, "app-1/rib_1.pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)

	f, err := store.Open(ctx, "app-1/rib_1.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "%PDF-1.4 body", string(data))

	_, err = store.Open(ctx, "app-1")
	assert.ErrorIs(t, err, os.ErrNotExist, "directories are not blobs")
	_, err = store.Open(ctx, "app-1/missing.pdf")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
