package terrain

import (
	"context"
	"fmt"
	"math"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/config"
	"github.com/annel0/blockpos/internal/logging"
	"github.com/annel0/blockpos/internal/storage"
	"github.com/aquilax/go-perlin"
)

// Параметры шума Перлина
const (
	noiseAlpha   = 2.0 // Сглаживание шума
	noiseBeta    = 2.0 // Частота шума
	noiseOctaves = 3   // Количество октав

	// dirtDepth — толщина слоя земли под травой
	dirtDepth = 3

	fillBatchSize = 4096
)

// Generator строит карту высот и заполняет ею области хранилища.
// Каждый экземпляр держит собственный шум, так что генераторы
// с разными сидами не мешают друг другу.
type Generator struct {
	Seed       int64   // Сид для генерации шума
	Scale      float64 // Масштаб шума (сглаженность рельефа)
	BaseHeight int32   // Средняя высота поверхности
	Amplitude  int32   // Максимальное отклонение от BaseHeight

	noise *perlin.Perlin
}

// NewGenerator создаёт генератор рельефа
func NewGenerator(seed int64, scale float64, baseHeight, amplitude int32) *Generator {
	return &Generator{
		Seed:       seed,
		Scale:      scale,
		BaseHeight: baseHeight,
		Amplitude:  amplitude,
		noise:      perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed),
	}
}

// FromConfig создаёт генератор по секции terrain конфигурации
func FromConfig(cfg config.TerrainConfig) *Generator {
	return NewGenerator(cfg.Seed, cfg.Scale, cfg.BaseHeight, cfg.Amplitude)
}

// Height возвращает высоту поверхности в столбце (x, z).
func (g *Generator) Height(x, z int32) int32 {
	n := g.noise.Noise2D(float64(x)*g.Scale, float64(z)*g.Scale)
	n = math.Max(-1, math.Min(1, n))
	return g.BaseHeight + int32(math.Round(n*float64(g.Amplitude)))
}

// BlockAt возвращает блок рельефа в позиции.
func (g *Generator) BlockAt(pos blockpos.Coords) storage.BlockID {
	return layerBlock(pos.Y(), g.Height(pos.X(), pos.Z()))
}

func layerBlock(y, height int32) storage.BlockID {
	switch {
	case y > height:
		return storage.Air
	case y == height:
		return storage.Grass
	case y >= height-dirtDepth:
		return storage.Dirt
	default:
		return storage.Stone
	}
}

// Fill заполняет рельефом параллелепипед a..b. Воздух не записывается.
// Возвращает число записанных блоков. Объём области ограничен blockpos.MaxWalkVolume.
func (g *Generator) Fill(ctx context.Context, store storage.BlockStore, a, b blockpos.Pos) (int64, error) {
	if !blockpos.Representable(a) || !blockpos.Representable(b) {
		return 0, fmt.Errorf("%w: %v..%v", storage.ErrOutOfBounds, a, b)
	}
	box := blockpos.NewBox(a, b)
	if err := box.CheckVolume(blockpos.MaxWalkVolume); err != nil {
		return 0, err
	}

	// высоты столбцов считаются один раз на столбец
	heights := make(map[[2]int32]int32)
	heightAt := func(x, z int32) int32 {
		key := [2]int32{x, z}
		h, ok := heights[key]
		if !ok {
			h = g.Height(x, z)
			heights[key] = h
		}
		return h
	}

	var written int64
	batch := make(map[blockpos.Pos]storage.BlockID, fillBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.BatchSet(ctx, batch); err != nil {
			return err
		}
		written += int64(len(batch))
		clear(batch)
		return nil
	}

	it := box.IterateLayers()
	for it.Next() {
		cur := it.Current()
		id := layerBlock(cur.Y(), heightAt(cur.X(), cur.Z()))
		if id == storage.Air {
			continue
		}
		batch[cur.Immutable()] = id
		if len(batch) >= fillBatchSize {
			if err := flush(); err != nil {
				return written, fmt.Errorf("рельеф %v: %w", box, err)
			}
		}
	}
	if err := flush(); err != nil {
		return written, fmt.Errorf("рельеф %v: %w", box, err)
	}

	logging.GetComponentLogger("terrain").Info("Рельеф %v: записано %d блоков (сид %d)", box, written, g.Seed)
	return written, nil
}
