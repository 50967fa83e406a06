package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/digipin/internal/config"
)

func TestOpen(t *testing.T) {
	kv, err := Open(config.StorageConfig{Backend: config.StorageMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)

	path := filepath.Join(t.TempDir(), "s.json")
	kv, err = Open(config.StorageConfig{Backend: config.StorageFile, Path: path}, nil)
	require.NoError(t, err)
	require.IsType(t, &FileKV{}, kv)
	assert.Equal(t, path, kv.(*FileKV).Path())

	_, err = Open(config.StorageConfig{Backend: "etcd"}, nil)
	assert.Error(t, err)
}

func TestOpen_NATS(t *testing.T) {
	server := startTestNATSServer(t)

	kv, err := Open(config.StorageConfig{
		Backend:    config.StorageNATS,
		NATSURL:    server.ClientURL(),
		NATSBucket: "digipin",
	}, nil)
	require.NoError(t, err)
	defer kv.Close()
	assert.IsType(t, &NATSKV{}, kv)
}
