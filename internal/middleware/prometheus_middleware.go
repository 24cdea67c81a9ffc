package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute — значение метки route для запросов мимо маршрутов.
const unmatchedRoute = "unmatched"

// PrometheusMiddleware собирает HTTP-метрики запросов Gin:
//
//	<ns>_http_request_duration_seconds{method,route,code}
//	<ns>_http_requests_in_flight
//	<ns>_http_responses_total{route,class}     class = 2xx, 3xx, 4xx, 5xx
//	<ns>_http_response_size_bytes{route}
type PrometheusMiddleware struct {
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	responses *prometheus.CounterVec
	size      *prometheus.HistogramVec
}

// NewPrometheusMiddleware регистрирует метрики в reg с пространством имён ns.
func NewPrometheusMiddleware(ns string, reg prometheus.Registerer) *PrometheusMiddleware {
	pm := &PrometheusMiddleware{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Время обработки HTTP-запроса.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"method", "route", "code"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "http_requests_in_flight",
			Help:      "Запросы, обрабатываемые прямо сейчас.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_responses_total",
			Help:      "Ответы по классам статуса.",
		}, []string{"route", "class"}),
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_response_size_bytes",
			Help:      "Размер тела ответа.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"route"}),
	}
	reg.MustRegister(pm.duration, pm.inFlight, pm.responses, pm.size)
	return pm
}

// Handler подключается через router.Use().
func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pm.inFlight.Inc()
		defer pm.inFlight.Dec()

		began := time.Now()
		c.Next()
		elapsed := time.Since(began)

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		code := c.Writer.Status()

		pm.duration.WithLabelValues(c.Request.Method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
		pm.responses.WithLabelValues(route, statusClass(code)).Inc()
		if n := c.Writer.Size(); n > 0 {
			pm.size.WithLabelValues(route).Observe(float64(n))
		}
	}
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// RegisterMetricsEndpoint вешает GET /metrics на r.
func (pm *PrometheusMiddleware) RegisterMetricsEndpoint(r *gin.Engine, g prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
