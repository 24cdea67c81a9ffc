package observability

import (
	"context"
	"time"

	"github.com/annel0/blockpos/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ServiceName — имя сервиса в ресурсе трассировки.
const ServiceName = "blockpos"

// shutdownTimeout ограничивает сброс оставшихся спанов при остановке.
const shutdownTimeout = 5 * time.Second

// TracingConfig описывает экспорт спанов.
type TracingConfig struct {
	ServiceName string
	// Endpoint — host:port OTLP/HTTP коллектора; пустой — значение
	// OTEL_EXPORTER_OTLP_ENDPOINT или localhost:4318.
	Endpoint string
	Insecure bool
}

// InitTelemetry настраивает OTLP экспортер и делает TracerProvider глобальным.
// Возвращённую функцию нужно вызвать при остановке: она досылает
// накопленные спаны.
func InitTelemetry(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = ServiceName
	}

	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logging.Info("📡 Трассировка OpenTelemetry включена (service=%s, endpoint=%q)", cfg.ServiceName, cfg.Endpoint)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}
