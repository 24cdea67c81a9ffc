package terrain

import (
	"context"
	"testing"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/config"
	"github.com/annel0/blockpos/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeightDeterministic(t *testing.T) {
	a := NewGenerator(42, 0.05, 64, 16)
	b := NewGenerator(42, 0.05, 64, 16)
	other := NewGenerator(7, 0.05, 64, 16)

	differs := false
	for x := int32(-20); x <= 20; x += 3 {
		for z := int32(-20); z <= 20; z += 3 {
			h := a.Height(x, z)
			assert.Equal(t, h, b.Height(x, z), "столбец %d,%d", x, z)
			assert.GreaterOrEqual(t, h, int32(64-16))
			assert.LessOrEqual(t, h, int32(64+16))
			if other.Height(x, z) != h {
				differs = true
			}
		}
	}
	assert.True(t, differs, "другой сид даёт другой рельеф")
}

func TestFlatTerrainLayers(t *testing.T) {
	g := NewGenerator(1, 0.05, 10, 0)

	assert.Equal(t, storage.Air, g.BlockAt(blockpos.NewPos(0, 11, 0)))
	assert.Equal(t, storage.Grass, g.BlockAt(blockpos.NewPos(0, 10, 0)))
	assert.Equal(t, storage.Dirt, g.BlockAt(blockpos.NewPos(0, 9, 0)))
	assert.Equal(t, storage.Dirt, g.BlockAt(blockpos.NewPos(0, 7, 0)))
	assert.Equal(t, storage.Stone, g.BlockAt(blockpos.NewPos(0, 6, 0)))
}

func TestFill(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	g := FromConfig(config.Default().Terrain)

	a := blockpos.NewPos(-4, 40, -4)
	b := blockpos.NewPos(4, 90, 4)
	n, err := g.Fill(ctx, store, b, a)
	require.NoError(t, err)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(count), n)

	box := blockpos.NewBox(a, b)
	var expected int64
	it := box.IterateLayers()
	for it.Next() {
		pos := it.Current().Immutable()
		want := g.BlockAt(pos)
		got, err := store.Get(ctx, pos)
		require.NoError(t, err)
		assert.Equal(t, want, got, "позиция %v", pos)
		if want != storage.Air {
			expected++
		}
	}
	assert.Equal(t, expected, n)
	assert.Positive(t, n)
}

func TestFillRejectsUnrepresentable(t *testing.T) {
	g := NewGenerator(1, 0.05, 10, 2)
	_, err := g.Fill(context.Background(), storage.NewMemoryStore(),
		blockpos.Origin, blockpos.NewPos(0, blockpos.MinY-1, 0))
	assert.ErrorIs(t, err, storage.ErrOutOfBounds)
}

func TestFillRejectsHugeBox(t *testing.T) {
	g := NewGenerator(1, 0.05, 10, 2)
	store := storage.NewMemoryStore()
	n, err := g.Fill(context.Background(), store,
		blockpos.NewPos(blockpos.MinX, blockpos.MinY, blockpos.MinZ),
		blockpos.NewPos(blockpos.MaxX, blockpos.MaxY, blockpos.MaxZ))
	assert.ErrorIs(t, err, blockpos.ErrBoxTooLarge)
	assert.Zero(t, n)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
