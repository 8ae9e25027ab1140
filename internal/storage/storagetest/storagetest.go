// Package storagetest holds the behaviour every CheckpointStore must share.
package storagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theragraph/internal/storage"
)

const contract = "0x280b971f9405aD604a4EaE50F3AD65Aa092F9f35"

// Run exercises a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.CheckpointStore) {
	t.Run("missing", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.LastBlock(context.Background(), contract)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("case insensitive key", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SaveLastBlock(ctx, contract, "friends", 100))

		got, ok, err := s.LastBlock(ctx, "0x280B971F9405AD604A4EAE50F3AD65AA092F9F35")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint64(100), got)

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "0x280b971f9405ad604a4eae50f3ad65aa092f9f35", list[0].ContractAddress)
	})

	t.Run("monotonic", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, block := range []uint64{10, 50, 20, 50, 5} {
			require.NoError(t, s.SaveLastBlock(ctx, contract, "friends", block))
		}
		got, _, err := s.LastBlock(ctx, contract)
		require.NoError(t, err)
		assert.Equal(t, uint64(50), got)
	})

	t.Run("type follows latest save", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SaveLastBlock(ctx, contract, "art", 10))
		require.NoError(t, s.SaveLastBlock(ctx, contract, "friends", 9))

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "friends", list[0].ContractType)
		assert.Equal(t, uint64(10), list[0].LastBlock)
	})

	t.Run("concurrent saves keep the maximum", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := uint64(1); i <= 40; i++ {
			wg.Add(1)
			go func(block uint64) {
				defer wg.Done()
				errs <- s.SaveLastBlock(ctx, contract, "friends", block)
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, _, err := s.LastBlock(ctx, contract)
		require.NoError(t, err)
		assert.Equal(t, uint64(40), got)
	})

	t.Run("empty address", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.SaveLastBlock(context.Background(), " ", "friends", 1), storage.ErrAddressRequired)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}
