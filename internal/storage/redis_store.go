package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisStore хранит блоки в одном Redis hash: поле — упакованное слово
// позиции в десятичном виде, значение — BlockID.
type RedisStore struct {
	client *redis.Client
	key    string
	mu     sync.RWMutex
	closed bool
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "blockpos:",
	}
}

// NewRedisStore подключается к Redis и проверяет соединение.
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Connected to Redis at %s", config.Addr)
	return &RedisStore{
		client: client,
		key:    config.KeyPrefix + "blocks",
	}, nil
}

func field(pos blockpos.Pos) string {
	return strconv.FormatInt(pos.Pack(), 10)
}

// Get читает блок из hash.
func (s *RedisStore) Get(ctx context.Context, pos blockpos.Pos) (BlockID, error) {
	if err := checkPos(ctx, pos); err != nil {
		return Air, err
	}
	if s.isClosed() {
		return Air, ErrClosed
	}

	val, err := s.client.HGet(ctx, s.key, field(pos)).Result()
	if errors.Is(err, redis.Nil) {
		return Air, nil
	}
	if err != nil {
		return Air, fmt.Errorf("failed to get block: %w", err)
	}

	id, err := strconv.ParseUint(val, 10, 16)
	if err != nil {
		return Air, fmt.Errorf("некорректное значение блока %q: %w", val, err)
	}
	return BlockID(id), nil
}

// Set записывает блок; Air удаляет поле.
func (s *RedisStore) Set(ctx context.Context, pos blockpos.Pos, id BlockID) error {
	if err := checkPos(ctx, pos); err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}

	var err error
	if id == Air {
		err = s.client.HDel(ctx, s.key, field(pos)).Err()
	} else {
		err = s.client.HSet(ctx, s.key, field(pos), uint16(id)).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set block: %w", err)
	}
	return nil
}

// Delete удаляет позицию.
func (s *RedisStore) Delete(ctx context.Context, pos blockpos.Pos) error {
	return s.Set(ctx, pos, Air)
}

// BatchSet отправляет изменения одним pipeline.
func (s *RedisStore) BatchSet(ctx context.Context, blocks map[blockpos.Pos]BlockID) error {
	if err := checkBatch(ctx, blocks); err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}
	if len(blocks) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for pos, id := range blocks {
		if id == Air {
			pipe.HDel(ctx, s.key, field(pos))
		} else {
			pipe.HSet(ctx, s.key, field(pos), uint16(id))
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Count возвращает размер hash.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	n, err := s.client.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	return int(n), nil
}

// Clear удаляет все блоки хранилища.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close закрывает соединение с Redis
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
