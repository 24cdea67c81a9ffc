package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/blockpos/internal/api"
	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/cache"
	"github.com/annel0/blockpos/internal/config"
	"github.com/annel0/blockpos/internal/locator"
	"github.com/annel0/blockpos/internal/logging"
	"github.com/annel0/blockpos/internal/observability"
	"github.com/annel0/blockpos/internal/storage"
	"github.com/annel0/blockpos/internal/terrain"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигурации (по умолчанию $BLOCKPOS_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := initLogging(cfg.Logging); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🧱 Запуск сервера позиций блоков...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТРАССИРОВКА ===
	if cfg.Server.EnableTracing {
		shutdownTracing, err := observability.InitTelemetry(ctx, observability.TracingConfig{
			Endpoint: cfg.Server.OTLPEndpoint,
			Insecure: cfg.Server.OTLPInsecure,
		})
		if err != nil {
			logging.Error("❌ Ошибка инициализации трассировки: %v", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logging.Warn("Ошибка остановки трассировки: %v", err)
			}
		}()
	}

	// === ХРАНИЛИЩЕ ===
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logging.Error("❌ Ошибка открытия хранилища: %v", err)
		os.Exit(1)
	}
	// store ниже оборачивается кешем и NATS; обёртки закрывают обёрнутое,
	// поэтому закрывается итоговое значение
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("❌ Ошибка закрытия хранилища: %v", err)
		}
	}()

	var blockCache *cache.BlockCache
	if cfg.Storage.CacheEntries > 0 {
		blockCache, err = cache.NewBlockCache(store, cfg.Storage.CacheEntries)
		if err != nil {
			logging.Error("❌ Ошибка создания кеша блоков: %v", err)
			os.Exit(1)
		}
		store = blockCache
		logging.Info("🔥 Горячий кеш блоков: %d позиций", cfg.Storage.CacheEntries)
	}

	var natsConn *nats.Conn
	if cfg.Notify.NATSURL != "" {
		natsConn, err = storage.ConnectNATS(cfg.Notify.NATSURL, cfg.Notify.MaxReconnects, cfg.Notify.ReconnectWait)
		if err != nil {
			logging.Error("❌ Ошибка подключения к NATS: %v", err)
			os.Exit(1)
		}
		defer natsConn.Close()

		notifying := storage.NewNotifyingStore(store, natsConn, cfg.Notify.Subject)
		store = notifying
		logging.Info("📡 Изменения блоков публикуются в %s (узел %s)", cfg.Notify.Subject, notifying.Origin())

		if blockCache != nil {
			sub, err := blockCache.ListenInvalidations(natsConn, cfg.Notify.Subject, notifying.Origin())
			if err != nil {
				logging.Error("❌ Ошибка подписки на инвалидации: %v", err)
				os.Exit(1)
			}
			defer sub.Unsubscribe()
		}
	}

	// === РЕЛЬЕФ ===
	if cfg.Terrain.SeedBox != "" {
		if err := seedTerrain(ctx, cfg.Terrain, store); err != nil {
			logging.Error("❌ Ошибка генерации рельефа: %v", err)
			os.Exit(1)
		}
	}

	// === МЕТРИКИ ===
	var registry *prometheus.Registry
	if cfg.Server.EnableMetrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	var locMetrics *locator.Metrics
	if registry != nil {
		locMetrics = locator.NewMetrics(registry)
	}
	loc := locator.New(store, locMetrics, locator.WithMaxRange(cfg.Search.MaxRange))

	// === REST API ===
	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	server := api.NewRestServer(api.Config{
		Addr:            restAddr,
		Store:           store,
		Locator:         loc,
		Registry:        registry,
		HorizontalRange: cfg.Search.HorizontalRange,
		VerticalRange:   cfg.Search.VerticalRange,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logging.Info("✅ Сервер запущен: хранилище=%s, REST API=http://localhost%s", cfg.Storage.Backend, restAddr)
	logging.Info("   curl 'http://localhost%s/api/nearest?pos=0,64,0&block=%d'", restAddr, storage.Ore)

	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения, остановка...")
	case err := <-errCh:
		if err != nil {
			logging.Error("❌ REST API остановлен с ошибкой: %v", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}

	if ns, ok := store.(*storage.NotifyingStore); ok {
		published, failed := ns.Stats()
		logging.Info("Опубликовано изменений: %d, ошибок: %d", published, failed)
	}

	if blockCache != nil {
		m := blockCache.GetMetrics()
		logging.Info("Кеш блоков: запросов %d, попаданий %.1f%%", m.TotalRequests, m.HitRatio*100)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

func initLogging(cfg config.LoggingConfig) error {
	consoleLevel, err := logging.ParseLevel(cfg.ConsoleLevel)
	if err != nil {
		return err
	}
	fileLevel, err := logging.ParseLevel(cfg.FileLevel)
	if err != nil {
		return err
	}
	return logging.InitLogger(cfg.Dir, consoleLevel, fileLevel)
}

func seedTerrain(ctx context.Context, cfg config.TerrainConfig, store storage.BlockStore) error {
	box, err := blockpos.ParseBox(cfg.SeedBox)
	if err != nil {
		return err
	}
	_, err = terrain.FromConfig(cfg).Fill(ctx, store, box.Min, box.Max)
	return err
}
