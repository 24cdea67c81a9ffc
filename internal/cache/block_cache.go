package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/logging"
	"github.com/annel0/blockpos/internal/storage"
	"github.com/dgraph-io/ristretto"
	"github.com/nats-io/nats.go"
)

// BlockCache — двухуровневое хранилище: горячий кеш в памяти поверх
// холодного BlockStore (Badger, Redis).
//
// Использование:
//
//	cached, err := cache.NewBlockCache(store, 1<<16)
//	id, err := cached.Get(ctx, pos)
//
// Запись идёт сквозь кеш в холодное хранилище, запись в кеше удаляется.
// Изменения, сделанные мимо этого кеша, приходят через ListenInvalidations.
//
// Каждая запись и инвалидация увеличивает поколение generation.
// Промах кладёт прочитанное значение в кеш, только если поколение
// не изменилось с момента перед чтением холодного хранилища.
type BlockCache struct {
	cold storage.BlockStore
	hot  *ristretto.Cache
	log  *logging.Logger

	mu         sync.Mutex // упорядочивает заполнение и удаление в hot
	generation uint64

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

// Metrics содержит метрики кеша.
type Metrics struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	HitRatio      float64 `json:"hit_ratio"`
	Invalidations int64   `json:"invalidations"`
}

// NewBlockCache создаёт кеш на maxEntries позиций поверх cold.
func NewBlockCache(cold storage.BlockStore, maxEntries int64) (*BlockCache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("размер кеша должен быть положительным, получено %d", maxEntries)
	}

	hot, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true, // стоимость записи — одна позиция
	})
	if err != nil {
		return nil, fmt.Errorf("создание кеша: %w", err)
	}

	return &BlockCache{
		cold: cold,
		hot:  hot,
		log:  logging.GetComponentLogger("cache"),
	}, nil
}

func (c *BlockCache) Get(ctx context.Context, pos blockpos.Pos) (storage.BlockID, error) {
	if !blockpos.Representable(pos) {
		return storage.Air, fmt.Errorf("%w: %v", storage.ErrOutOfBounds, pos)
	}

	word := pos.Pack()
	if v, ok := c.hot.Get(word); ok {
		c.hits.Add(1)
		return v.(storage.BlockID), nil
	}

	c.misses.Add(1)
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	id, err := c.cold.Get(ctx, pos)
	if err != nil {
		return storage.Air, err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.hot.Set(word, id, 1)
	}
	c.mu.Unlock()
	return id, nil
}

// drop удаляет позиции из hot и сдвигает поколение.
func (c *BlockCache) drop(words ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	for _, w := range words {
		c.hot.Del(w)
	}
}

func (c *BlockCache) Set(ctx context.Context, pos blockpos.Pos, id storage.BlockID) error {
	if err := c.cold.Set(ctx, pos, id); err != nil {
		return err
	}
	c.drop(pos.Pack())
	return nil
}

func (c *BlockCache) Delete(ctx context.Context, pos blockpos.Pos) error {
	return c.Set(ctx, pos, storage.Air)
}

func (c *BlockCache) BatchSet(ctx context.Context, blocks map[blockpos.Pos]storage.BlockID) error {
	if err := c.cold.BatchSet(ctx, blocks); err != nil {
		return err
	}
	words := make([]int64, 0, len(blocks))
	for pos := range blocks {
		words = append(words, pos.Pack())
	}
	c.drop(words...)
	return nil
}

// Count всегда читает холодное хранилище
func (c *BlockCache) Count(ctx context.Context) (int, error) {
	return c.cold.Count(ctx)
}

// Invalidate удаляет позицию из горячего кеша.
func (c *BlockCache) Invalidate(pos blockpos.Pos) {
	c.invalidations.Add(1)
	c.drop(pos.Pack())
}

// Wait дожидается применения отложенных записей в горячий кеш.
func (c *BlockCache) Wait() {
	c.hot.Wait()
}

// ListenInvalidations подписывается на изменения блоков в subject.
// Сообщения с источником self пропускаются: свои записи кеш уже удалил сам.
func (c *BlockCache) ListenInvalidations(conn *nats.Conn, subject, self string) (*nats.Subscription, error) {
	sub, err := storage.SubscribeChanges(conn, subject, c.invalidator(self))
	if err != nil {
		return nil, err
	}
	c.log.Info("Кеш блоков слушает инвалидации на %s", subject)
	return sub, nil
}

func (c *BlockCache) invalidator(self string) func(storage.BlockChange) {
	return func(change storage.BlockChange) {
		if self != "" && change.Origin == self {
			return
		}
		c.Invalidate(change.Pos())
	}
}

// GetMetrics возвращает метрики кеша.
func (c *BlockCache) GetMetrics() Metrics {
	hits, misses := c.hits.Load(), c.misses.Load()
	m := Metrics{
		TotalRequests: hits + misses,
		CacheHits:     hits,
		CacheMisses:   misses,
		Invalidations: c.invalidations.Load(),
	}
	if m.TotalRequests > 0 {
		m.HitRatio = float64(hits) / float64(m.TotalRequests)
	}
	return m
}

// Close закрывает кеш и холодное хранилище.
func (c *BlockCache) Close() error {
	c.hot.Close()
	return c.cold.Close()
}
