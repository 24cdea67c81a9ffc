package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runBlockStoreSuite проверяет общий контракт BlockStore
func runBlockStoreSuite(t *testing.T, store BlockStore) {
	ctx := context.Background()

	t.Run("Get missing is Air", func(t *testing.T) {
		id, err := store.Get(ctx, blockpos.NewPos(1000, 100, 1000))
		require.NoError(t, err)
		assert.Equal(t, Air, id)
	})

	t.Run("Set and Get", func(t *testing.T) {
		pos := blockpos.NewPos(-5, 64, 12)
		require.NoError(t, store.Set(ctx, pos, Stone))

		id, err := store.Get(ctx, pos)
		require.NoError(t, err)
		assert.Equal(t, Stone, id)

		// соседняя позиция не затронута
		id, err = store.Get(ctx, pos.Add(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, Air, id)
	})

	t.Run("Extreme coordinates", func(t *testing.T) {
		hi := blockpos.NewPos(blockpos.MaxX, blockpos.MaxY, blockpos.MaxZ)
		lo := blockpos.NewPos(blockpos.MinX, blockpos.MinY, blockpos.MinZ)
		require.NoError(t, store.Set(ctx, hi, Ore))
		require.NoError(t, store.Set(ctx, lo, Sand))

		id, err := store.Get(ctx, hi)
		require.NoError(t, err)
		assert.Equal(t, Ore, id)

		id, err = store.Get(ctx, lo)
		require.NoError(t, err)
		assert.Equal(t, Sand, id)

		require.NoError(t, store.Delete(ctx, hi))
		require.NoError(t, store.Delete(ctx, lo))
	})

	t.Run("Set Air deletes", func(t *testing.T) {
		pos := blockpos.NewPos(7, 7, 7)
		require.NoError(t, store.Set(ctx, pos, Dirt))
		before, err := store.Count(ctx)
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, pos, Air))
		after, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before-1, after)

		require.NoError(t, store.Set(ctx, pos, Dirt))
		require.NoError(t, store.Delete(ctx, pos))
		id, err := store.Get(ctx, pos)
		require.NoError(t, err)
		assert.Equal(t, Air, id)
	})

	t.Run("BatchSet", func(t *testing.T) {
		blocks := map[blockpos.Pos]BlockID{
			blockpos.NewPos(100, 1, 100): Grass,
			blockpos.NewPos(100, 2, 100): Water,
			blockpos.NewPos(100, 3, 100): Stone,
		}
		require.NoError(t, store.BatchSet(ctx, blocks))

		for pos, want := range blocks {
			id, err := store.Get(ctx, pos)
			require.NoError(t, err)
			assert.Equal(t, want, id, "позиция %v", pos)
		}

		require.NoError(t, store.BatchSet(ctx, map[blockpos.Pos]BlockID{
			blockpos.NewPos(100, 1, 100): Air,
		}))
		id, err := store.Get(ctx, blockpos.NewPos(100, 1, 100))
		require.NoError(t, err)
		assert.Equal(t, Air, id)
	})

	t.Run("Out of bounds rejected", func(t *testing.T) {
		bad := blockpos.NewPos(blockpos.MaxX+1, 0, 0)

		err := store.Set(ctx, bad, Stone)
		assert.True(t, errors.Is(err, ErrOutOfBounds), "получено: %v", err)

		_, err = store.Get(ctx, blockpos.NewPos(0, blockpos.MaxY+1, 0))
		assert.ErrorIs(t, err, ErrOutOfBounds)

		err = store.BatchSet(ctx, map[blockpos.Pos]BlockID{bad: Stone})
		assert.ErrorIs(t, err, ErrOutOfBounds)

		// с заворачиванием этот ключ совпал бы с (MinX, 0, 0)
		id, err := store.Get(ctx, blockpos.NewPos(blockpos.MinX, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, Air, id)
	})

	t.Run("Context cancellation", func(t *testing.T) {
		canceled, cancel := context.WithCancel(context.Background())
		cancel()

		err := store.Set(canceled, blockpos.NewPos(1, 1, 1), Stone)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	runBlockStoreSuite(t, store)

	snap := store.Snapshot()
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap, n)

	require.NoError(t, store.Close())
	_, err = store.Get(context.Background(), blockpos.Origin)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBadgerStoreInMemory(t *testing.T) {
	store, err := OpenBadgerStore("")
	require.NoError(t, err)
	defer store.Close()

	runBlockStoreSuite(t, store)
}

func TestBadgerStorePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	pos := blockpos.NewPos(-123456, -64, 654321)

	store, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, pos, Ore))
	require.NoError(t, store.Close())

	_, err = store.Get(ctx, pos)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, store.Close(), "повторное закрытие безопасно")

	reopened, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	id, err := reopened.Get(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, Ore, id)

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("BLOCKPOS_TEST_REDIS")
	if addr == "" {
		t.Skip("BLOCKPOS_TEST_REDIS не задан")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, &RedisConfig{
		Addr:      addr,
		KeyPrefix: "blockpos-test:" + time.Now().Format("150405.000") + ":",
	})
	require.NoError(t, err)
	defer func() {
		_ = store.Clear(ctx)
		_ = store.Close()
	}()

	runBlockStoreSuite(t, store)
}

func TestKeyEncoding(t *testing.T) {
	for _, pos := range []blockpos.Pos{
		blockpos.Origin,
		blockpos.NewPos(-1, -1, -1),
		blockpos.NewPos(blockpos.MaxX, blockpos.MinY, blockpos.MaxZ),
	} {
		key := EncodeKey(pos)
		assert.Len(t, key, 12)
		assert.Equal(t, "blk:", string(key[:4]))

		got, err := DecodeKey(key)
		require.NoError(t, err)
		assert.Equal(t, pos, got)
	}

	_, err := DecodeKey([]byte("blk:123"))
	assert.Error(t, err)
	_, err = DecodeKey([]byte("xxx:12345678"))
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StorageConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
	require.NoError(t, store.Close())

	store, err = Open(ctx, config.StorageConfig{Backend: config.BackendBadger})
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, config.StorageConfig{Backend: "mysql"})
	assert.Error(t, err)
}

// TestMemoryStoreConcurrentAccess тестирует параллельный доступ
func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const numGoroutines = 10
	const numOperations = 100

	var wg sync.WaitGroup
	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				pos := blockpos.NewPos(int32(g), int32(j), 0)
				if err := store.Set(ctx, pos, Stone); err != nil {
					t.Errorf("горутина %d: %v", g, err)
					return
				}
				if id, err := store.Get(ctx, pos); err != nil || id != Stone {
					t.Errorf("горутина %d: получено %d, %v", g, id, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, numGoroutines*numOperations, n)
}
