package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadIsContentAddressedAndIdempotent(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	url1, err := store.Upload(context.Background(), "notes.pdf", []byte("lecture notes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url1, "/uploads/"))
	assert.True(t, strings.HasSuffix(url1, ".pdf"), "original extension is kept")

	// Same bytes, different name: same blob, same URL modulo extension.
	url2, err := store.Upload(context.Background(), "copy.pdf", []byte("lecture notes"))
	require.NoError(t, err)
	assert.Equal(t, url1, url2)

	// Different bytes land elsewhere.
	url3, err := store.Upload(context.Background(), "notes.pdf", []byte("revised notes"))
	require.NoError(t, err)
	assert.NotEqual(t, url1, url3)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUploadWritesReadableBlob(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "photo.png", []byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, err)

	blob := filepath.Join(store.Dir(), strings.TrimPrefix(url, "/uploads/"))
	data, err := os.ReadFile(blob)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, data)
}

func TestUploadRejectsEmptyPayload(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "empty.txt", nil)
	assert.Error(t, err)
}

func TestUploadHonorsCancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Upload(ctx, "late.txt", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
