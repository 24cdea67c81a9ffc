package storage

import (
	"context"
	"sync"

	"github.com/annel0/blockpos/internal/blockpos"
)

// MemoryStore реализует BlockStore в памяти.
// Ключ карты — упакованное слово позиции.
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[int64]BlockID
	closed bool
}

// NewMemoryStore создает новое хранилище блоков в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[int64]BlockID),
	}
}

// Get возвращает блок в позиции.
func (s *MemoryStore) Get(ctx context.Context, pos blockpos.Pos) (BlockID, error) {
	if err := checkPos(ctx, pos); err != nil {
		return Air, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Air, ErrClosed
	}
	return s.data[pos.Pack()], nil
}

// Set записывает блок; Air удаляет запись.
func (s *MemoryStore) Set(ctx context.Context, pos blockpos.Pos, id BlockID) error {
	if err := checkPos(ctx, pos); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.setLocked(pos.Pack(), id)
	return nil
}

func (s *MemoryStore) setLocked(word int64, id BlockID) {
	if id == Air {
		delete(s.data, word)
		return
	}
	s.data[word] = id
}

// Delete удаляет позицию.
func (s *MemoryStore) Delete(ctx context.Context, pos blockpos.Pos) error {
	return s.Set(ctx, pos, Air)
}

// BatchSet записывает несколько блоков под одной блокировкой.
func (s *MemoryStore) BatchSet(ctx context.Context, blocks map[blockpos.Pos]BlockID) error {
	if err := checkBatch(ctx, blocks); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	for pos, id := range blocks {
		s.setLocked(pos.Pack(), id)
	}
	return nil
}

// Count возвращает число непустых позиций.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	return len(s.data), ctx.Err()
}

// Snapshot возвращает копию всех записей.
func (s *MemoryStore) Snapshot() map[blockpos.Pos]BlockID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[blockpos.Pos]BlockID, len(s.data))
	for word, id := range s.data {
		out[blockpos.FromPacked(word)] = id
	}
	return out
}

// Close помечает хранилище закрытым.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = make(map[int64]BlockID)
	return nil
}
