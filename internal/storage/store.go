package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/annel0/blockpos/internal/blockpos"
)

// BlockID — тип блока в ячейке решётки.
type BlockID uint16

// Известные типы блоков. Отсутствующая запись означает Air.
const (
	Air BlockID = iota
	Stone
	Dirt
	Grass
	Water
	Sand
	Ore
)

var (
	// ErrOutOfBounds — позиция не помещается в упакованное слово без заворачивания.
	// Ключ такой позиции совпал бы с ключом другой позиции.
	ErrOutOfBounds = errors.New("позиция вне упаковываемого диапазона")

	// ErrClosed — хранилище уже закрыто.
	ErrClosed = errors.New("хранилище закрыто")
)

// BlockStore определяет интерфейс хранилища блоков, адресуемых
// упакованными координатами.
//
// Использование:
//
//	store := NewMemoryStore()
//	err := store.Set(ctx, blockpos.NewPos(1, 64, 1), Stone)
//	id, err := store.Get(ctx, blockpos.NewPos(1, 64, 1))
type BlockStore interface {
	// Get возвращает блок в позиции; Air, если записи нет.
	Get(ctx context.Context, pos blockpos.Pos) (BlockID, error)

	// Set записывает блок. Запись Air удаляет позицию.
	Set(ctx context.Context, pos blockpos.Pos, id BlockID) error

	// Delete удаляет позицию (эквивалентно Set(pos, Air)).
	Delete(ctx context.Context, pos blockpos.Pos) error

	// BatchSet записывает несколько блоков за один запрос.
	BatchSet(ctx context.Context, blocks map[blockpos.Pos]BlockID) error

	// Count возвращает число непустых позиций.
	Count(ctx context.Context) (int, error)

	// Close закрывает хранилище.
	Close() error
}

const keyPrefix = "blk:"

// EncodeKey строит ключ позиции: "blk:" + упакованное слово (big-endian).
// Big-endian сохраняет порядок X старших битов при сканировании префикса.
func EncodeKey(pos blockpos.Pos) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], uint64(pos.Pack()))
	return key
}

// DecodeKey восстанавливает позицию из ключа EncodeKey.
func DecodeKey(key []byte) (blockpos.Pos, error) {
	if len(key) != len(keyPrefix)+8 || string(key[:len(keyPrefix)]) != keyPrefix {
		return blockpos.Pos{}, fmt.Errorf("некорректный ключ блока: %x", key)
	}
	word := int64(binary.BigEndian.Uint64(key[len(keyPrefix):]))
	return blockpos.FromPacked(word), nil
}

// checkPos проверяет позицию и контекст перед операцией.
func checkPos(ctx context.Context, pos blockpos.Pos) error {
	if !blockpos.Representable(pos) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, pos)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

func checkBatch(ctx context.Context, blocks map[blockpos.Pos]BlockID) error {
	for pos := range blocks {
		if !blockpos.Representable(pos) {
			return fmt.Errorf("%w: %v", ErrOutOfBounds, pos)
		}
	}
	return ctx.Err()
}
