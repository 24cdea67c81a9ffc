package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/blockpos/internal/locator"
	"github.com/annel0/blockpos/internal/logging"
	"github.com/annel0/blockpos/internal/middleware"
	"github.com/annel0/blockpos/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultShellLimit = 1000
	maxShellLimit     = 10000
)

// RestServer представляет REST API запросов к решётке блоков
type RestServer struct {
	router  *gin.Engine
	server  *http.Server
	store   storage.BlockStore
	locator *locator.Locator
	log     *logging.Logger

	horizontalRange int
	verticalRange   int
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr    string             // адрес для запуска сервера
	Store   storage.BlockStore // хранилище блоков
	Locator *locator.Locator   // поиск; nil — создаётся поверх Store

	// Registry — реестр метрик; nil отключает /metrics
	Registry *prometheus.Registry

	// TracerProvider для спанов запросов; nil — глобальный провайдер otel
	TracerProvider trace.TracerProvider

	// Радиусы поиска по умолчанию для /api/nearest
	HorizontalRange int
	VerticalRange   int

	Logger *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetAPILogger()
	}
	if cfg.Locator == nil {
		cfg.Locator = locator.New(cfg.Store, nil)
	}

	gin.SetMode(gin.ReleaseMode)

	var otelOpts []otelgin.Option
	if cfg.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware("blockpos_api", otelOpts...),
		middleware.NewRequestLogger(cfg.Logger).Handler(),
	)

	if cfg.Registry != nil {
		metrics := middleware.NewPrometheusMiddleware("blockpos_api", cfg.Registry)
		router.Use(metrics.Handler())
		metrics.RegisterMetricsEndpoint(router, cfg.Registry)
	}

	rs := &RestServer{
		router:          router,
		store:           cfg.Store,
		locator:         cfg.Locator,
		log:             cfg.Logger,
		horizontalRange: cfg.HorizontalRange,
		verticalRange:   cfg.VerticalRange,
	}
	rs.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")
	{
		api.GET("/pack", rs.handlePack)
		api.GET("/unpack/:word", rs.handleUnpack)

		api.GET("/blocks/:pos", rs.handleGetBlock)
		api.PUT("/blocks/:pos", rs.handleSetBlock)

		api.GET("/nearest", rs.handleNearest)
		api.GET("/box/count", rs.handleBoxCount)
		api.GET("/shell", rs.handleShell)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер и блокируется до Shutdown
func (rs *RestServer) Start() error {
	rs.log.Info("REST API слушает %s", rs.server.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь активных запросов
func (rs *RestServer) Shutdown(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
