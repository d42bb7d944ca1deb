// Package metrics содержит Prometheus-метрики ядра MRP.
// Все методы безопасны для nil-получателя, чтобы сервисы работали без метрик
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор коллекторов MRP
type Metrics struct {
	recalculations     *prometheus.CounterVec
	recalcDuration     prometheus.Histogram
	cacheDecisions     *prometheus.CounterVec
	allocationAttempts prometheus.Histogram
	allocationConflict prometheus.Counter
	allocationFailures *prometheus.CounterVec
	stepInstances      *prometheus.CounterVec
}

// New создает коллекторы и регистрирует их в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mrp",
			Name:      "recalculations_total",
			Help:      "Requirements cascade runs by result.",
		}, []string{"result"}),
		recalcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mrp",
			Name:      "recalculation_duration_seconds",
			Help:      "Duration of a requirements cascade run.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mrp",
			Name:      "cache_decisions_total",
			Help:      "Change-detection decisions by reason.",
		}, []string{"reason"}),
		allocationAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mrp",
			Name:      "order_number_attempts",
			Help:      "Attempts needed to allocate an order number.",
			Buckets:   []float64{1, 2, 3, 5, 8, 10},
		}),
		allocationConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mrp",
			Name:      "order_number_conflicts_total",
			Help:      "Lost races and near misses while allocating order numbers.",
		}),
		allocationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mrp",
			Name:      "order_number_failures_total",
			Help:      "Failed order number allocations by kind.",
		}, []string{"kind"}),
		stepInstances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mrp",
			Name:      "step_instances_created_total",
			Help:      "Created manufacturing step instances.",
		}, []string{"rework"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.recalculations,
			m.recalcDuration,
			m.cacheDecisions,
			m.allocationAttempts,
			m.allocationConflict,
			m.allocationFailures,
			m.stepInstances,
		)
	}
	return m
}

func (m *Metrics) ObserveRecalculation(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.recalculations.WithLabelValues(result).Inc()
	m.recalcDuration.Observe(d.Seconds())
}

func (m *Metrics) CacheDecision(reason string) {
	if m == nil {
		return
	}
	m.cacheDecisions.WithLabelValues(reason).Inc()
}

func (m *Metrics) AllocationSucceeded(attempts int) {
	if m == nil {
		return
	}
	m.allocationAttempts.Observe(float64(attempts))
}

func (m *Metrics) AllocationConflict() {
	if m == nil {
		return
	}
	m.allocationConflict.Inc()
}

func (m *Metrics) AllocationFailed(kind string) {
	if m == nil {
		return
	}
	m.allocationFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) StepInstanceCreated(rework bool) {
	if m == nil {
		return
	}
	label := "false"
	if rework {
		label = "true"
	}
	m.stepInstances.WithLabelValues(label).Inc()
}
