package storage

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKV_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	ctx := context.Background()

	first, err := NewFileKV(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, map[string]any{"historyLimit": 5}))

	second, err := NewFileKV(path)
	require.NoError(t, err)
	got, err := second.Get(ctx, "historyLimit")
	require.NoError(t, err)
	assert.JSONEq(t, `5`, string(got["historyLimit"]))
	assert.Equal(t, path, second.Path())
}

func TestFileKV_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}
	path := filepath.Join(t.TempDir(), "storage.json")

	kv, err := NewFileKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), map[string]any{"k": "v"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp file left behind")
}

func TestFileKV_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	kv, err := NewFileKV(path)
	require.NoError(t, err)

	_, err = kv.Get(context.Background(), "history")
	assert.ErrorIs(t, err, ErrCorrupted)

	err = kv.Set(context.Background(), map[string]any{"history": []int{}})
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestFileKV_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	kv, err := NewFileKV(path)
	require.NoError(t, err)
	got, err := kv.Get(context.Background(), "history")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileKV_CanceledContext(t *testing.T) {
	kv, err := NewFileKV(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = kv.Get(ctx, "history")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, kv.Set(ctx, map[string]any{"a": 1}), context.Canceled)
}

func TestNewFileKV_RequiresPath(t *testing.T) {
	_, err := NewFileKV("")
	assert.Error(t, err)
}

func TestMemoryKV_Closed(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Close())
	require.NoError(t, kv.Close())

	_, err := kv.Get(context.Background(), "a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, kv.Set(context.Background(), map[string]any{"a": 1}), ErrClosed)
	_, err = kv.Watch(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFileKV_UpdateWaitsForLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	kv, err := NewFileKV(path)
	require.NoError(t, err)

	// Another process holding the lock file.
	other := flock.New(path + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = kv.Set(ctx, map[string]any{"k": "v"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, other.Unlock())
	require.NoError(t, kv.Set(context.Background(), map[string]any{"k": "v"}))
}
