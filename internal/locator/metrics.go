package locator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — Prometheus-метрики поиска и обхода областей.
//
// Метрики:
// * blockpos_searches_total{result} — поиски по исходу (hit/miss/error)
// * blockpos_search_candidates — сколько точек проверено до результата
// * blockpos_box_points_total{op} — точки, пройденные обходом области
type Metrics struct {
	searches   *prometheus.CounterVec
	candidates prometheus.Histogram
	boxPoints  *prometheus.CounterVec
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// nil reg — метрики создаются, но никуда не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockpos",
			Name:      "searches_total",
			Help:      "Число поисков ближайшего блока по исходу.",
		}, []string{"result"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blockpos",
			Name:      "search_candidates",
			Help:      "Количество позиций, проверенных одним поиском.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		boxPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockpos",
			Name:      "box_points_total",
			Help:      "Позиции, пройденные обходом параллелепипеда.",
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(m.searches, m.candidates, m.boxPoints)
	}
	return m
}

func (m *Metrics) observeSearch(result string, candidates int) {
	m.searches.WithLabelValues(result).Inc()
	m.candidates.Observe(float64(candidates))
}

func (m *Metrics) addBoxPoints(op string, n int64) {
	m.boxPoints.WithLabelValues(op).Add(float64(n))
}
