package storage

import (
	"context"
	"fmt"

	"github.com/annel0/blockpos/internal/config"
	"github.com/annel0/blockpos/internal/logging"
)

// Open создаёт хранилище блоков по конфигурации.
func Open(ctx context.Context, cfg config.StorageConfig) (BlockStore, error) {
	log := logging.GetStorageLogger()

	switch cfg.Backend {
	case "", config.BackendMemory:
		log.Info("Используется хранилище блоков в памяти")
		return NewMemoryStore(), nil

	case config.BackendBadger:
		log.Info("Открытие BadgerDB: %q", cfg.BadgerPath)
		return OpenBadgerStore(cfg.BadgerPath)

	case config.BackendRedis:
		return NewRedisStore(ctx, &RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		})

	default:
		return nil, fmt.Errorf("неизвестное хранилище %q", cfg.Backend)
	}
}
