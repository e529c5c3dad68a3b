package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBasicOps(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v"))
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store", "checkin.json")

	store, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "device_id", "abc-123"))
	require.NoError(t, store.Set(ctx, "history", "[]"))

	reopened, err := NewFile(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, "device_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc-123", v)
}

func TestFileDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFile(filepath.Join(t.TempDir(), "checkin.json"))
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "k", "v"))
	require.NoError(t, store.Delete(ctx, "k"))

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileToleratesCorruptContents(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkin.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	store, err := NewFile(path)
	require.NoError(t, err)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Writes recover the file.
	require.NoError(t, store.Set(ctx, "k", "v"))
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
