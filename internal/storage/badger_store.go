package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/dgraph-io/badger/v3"
)

// BadgerStore хранит блоки в BadgerDB.
// Ключ — EncodeKey(pos), значение — BlockID (2 байта, big-endian).
type BadgerStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// OpenBadgerStore открывает хранилище в каталоге path.
// Пустой path открывает BadgerDB в памяти.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerStore{
		db:      db,
		dbPath:  path,
		isReady: true,
	}, nil
}

func encodeValue(id BlockID) []byte {
	var v [2]byte
	binary.BigEndian.PutUint16(v[:], uint16(id))
	return v[:]
}

func decodeValue(v []byte) (BlockID, error) {
	if len(v) != 2 {
		return Air, fmt.Errorf("некорректное значение блока: %x", v)
	}
	return BlockID(binary.BigEndian.Uint16(v)), nil
}

// Get читает блок из BadgerDB.
func (s *BadgerStore) Get(ctx context.Context, pos blockpos.Pos) (BlockID, error) {
	if err := checkPos(ctx, pos); err != nil {
		return Air, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return Air, ErrClosed
	}

	id := Air
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(EncodeKey(pos))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id, err = decodeValue(val)
			return err
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return Air, nil
	}
	if err != nil {
		return Air, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return id, nil
}

// Set записывает блок; Air удаляет ключ.
func (s *BadgerStore) Set(ctx context.Context, pos blockpos.Pos, id BlockID) error {
	if err := checkPos(ctx, pos); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if id == Air {
			return txn.Delete(EncodeKey(pos))
		}
		return txn.Set(EncodeKey(pos), encodeValue(id))
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Delete удаляет позицию.
func (s *BadgerStore) Delete(ctx context.Context, pos blockpos.Pos) error {
	return s.Set(ctx, pos, Air)
}

// BatchSet записывает блоки через WriteBatch.
func (s *BadgerStore) BatchSet(ctx context.Context, blocks map[blockpos.Pos]BlockID) error {
	if err := checkBatch(ctx, blocks); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrClosed
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for pos, id := range blocks {
		var err error
		if id == Air {
			err = wb.Delete(EncodeKey(pos))
		} else {
			err = wb.Set(EncodeKey(pos), encodeValue(id))
		}
		if err != nil {
			return fmt.Errorf("ошибка пакетной записи в BadgerDB: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка пакетной записи в BadgerDB: %w", err)
	}
	return nil
}

// Count перебирает ключи с префиксом блоков.
func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return 0, ErrClosed
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close закрывает хранилище данных
func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	return s.db.Close()
}
