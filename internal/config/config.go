package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Notify  NotifyConfig  `yaml:"notify"`
	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
	Terrain TerrainConfig `yaml:"terrain"`
}

type ServerConfig struct {
	RESTPort      int  `yaml:"rest_port"`
	EnableMetrics bool `yaml:"enable_metrics"`

	// Трассировка OpenTelemetry (OTLP/HTTP)
	EnableTracing bool   `yaml:"enable_tracing"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	OTLPInsecure  bool   `yaml:"otlp_insecure"`
}

// Поддерживаемые хранилища блоков
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

type StorageConfig struct {
	Backend string `yaml:"backend"`

	// Badger: пустой путь — режим in-memory
	BadgerPath string `yaml:"badger_path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`

	// CacheEntries — размер горячего кеша блоков; 0 отключает кеш
	CacheEntries int64 `yaml:"cache_entries"`
}

// NotifyConfig — рассылка изменений блоков через NATS. Пустой URL отключает её.
type NotifyConfig struct {
	NATSURL       string        `yaml:"nats_url"`
	Subject       string        `yaml:"subject"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

type SearchConfig struct {
	HorizontalRange int `yaml:"horizontal_range"`
	VerticalRange   int `yaml:"vertical_range"`
	MaxRange        int `yaml:"max_range"`
}

type LoggingConfig struct {
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	Dir          string `yaml:"dir"`
}

type TerrainConfig struct {
	Seed       int64   `yaml:"seed"`
	Scale      float64 `yaml:"scale"`
	BaseHeight int32   `yaml:"base_height"`
	Amplitude  int32   `yaml:"amplitude"`
	// SeedBox — "x1,y1,z1:x2,y2,z2"; при запуске сервера область заполняется рельефом
	SeedBox string `yaml:"seed_box"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			RESTPort:      8088,
			EnableMetrics: true,
			OTLPInsecure:  true,
		},
		Storage: StorageConfig{
			Backend:     BackendMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "blockpos:",
		},
		Notify: NotifyConfig{
			Subject:       "blocks.changed",
			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,
		},
		Search: SearchConfig{
			HorizontalRange: 16,
			VerticalRange:   8,
			MaxRange:        128,
		},
		Logging: LoggingConfig{
			ConsoleLevel: "info",
			FileLevel:    "debug",
		},
		Terrain: TerrainConfig{
			Seed:       12345,
			Scale:      0.05,
			BaseHeight: 64,
			Amplitude:  16,
		},
	}
}

// GetRESTPort возвращает REST порт с приоритетом: config -> env -> default
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "BLOCKPOS_REST_PORT", 8088)
}

func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendBadger, BackendRedis:
	default:
		return fmt.Errorf("storage.backend: неизвестное хранилище %q", c.Storage.Backend)
	}

	if c.Storage.CacheEntries < 0 {
		return fmt.Errorf("storage.cache_entries не может быть отрицательным: %d", c.Storage.CacheEntries)
	}

	if c.Search.HorizontalRange < 0 || c.Search.VerticalRange < 0 {
		return fmt.Errorf("search: радиусы не могут быть отрицательными (%d, %d)",
			c.Search.HorizontalRange, c.Search.VerticalRange)
	}
	if c.Search.MaxRange <= 0 {
		return fmt.Errorf("search.max_range должен быть положительным, получено %d", c.Search.MaxRange)
	}
	if c.Search.HorizontalRange > c.Search.MaxRange || c.Search.VerticalRange > c.Search.MaxRange {
		return fmt.Errorf("search: радиусы по умолчанию превышают max_range=%d", c.Search.MaxRange)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берётся ENV BLOCKPOS_CONFIG; если и он пуст — Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("BLOCKPOS_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
