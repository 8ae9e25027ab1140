package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theragraph/internal/storage"
	"theragraph/internal/storage/storagetest"
)

func TestFileStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.CheckpointStore {
		s, err := storage.OpenFileStore(filepath.Join(t.TempDir(), "checkpoints.json"))
		require.NoError(t, err)
		return s
	})
}

func TestFileStoreReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoints.json")
	ctx := context.Background()

	s, err := storage.OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveLastBlock(ctx, "0xAbC", "music", 12))
	require.NoError(t, s.SaveLastBlock(ctx, "0xdef", "friends", 34))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	reloaded, err := storage.OpenFileStore(path)
	require.NoError(t, err)
	list, err := reloaded.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "0xabc", list[0].ContractAddress)
	assert.Equal(t, "music", list[0].ContractType)
	assert.Equal(t, uint64(12), list[0].LastBlock)
	assert.Equal(t, uint64(34), list[1].LastBlock)
}

func TestFileStoreRejectsDirectory(t *testing.T) {
	_, err := storage.OpenFileStore(t.TempDir())
	assert.Error(t, err)
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := storage.OpenFileStore(path)
	assert.Error(t, err)
}

func TestJSONLSink(t *testing.T) {
	type row struct {
		N int `json:"n"`
	}
	path := filepath.Join(t.TempDir(), "out", "rows.jsonl")
	sink := storage.NewJSONLSink[row](path)

	require.NoError(t, sink.Truncate())
	require.NoError(t, sink.PutBatch([]row{{N: 1}, {N: 2}}))
	require.NoError(t, sink.PutBatch(nil))
	require.NoError(t, sink.PutBatch([]row{{N: 3}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":1}\n{\"n\":2}\n{\"n\":3}\n", string(data))
}
