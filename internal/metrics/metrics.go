// Package metrics exposes Prometheus instruments for pool operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "metapool"

// Metrics holds the pool's instruments. A nil *Metrics records nothing.
type Metrics struct {
	operations    *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	rateRefreshes prometheus.Counter
	amp           prometheus.Gauge
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "operations_total",
			Help:      "number of executed pool operations",
		}, []string{"action"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "operation_failures_total",
			Help:      "number of rejected pool operations by error class",
		}, []string{"action", "class"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "operation_duration_seconds",
			Help:      "time spent executing a pool operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		rateRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rate_cache",
			Name:      "refreshes_total",
			Help:      "number of exchange rate oracle queries",
		}),
		amp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "amp",
			Help:      "amplification coefficient scaled by 100",
		}),
	}
}

// ObserveOperation records one operation. class is empty on success.
func (m *Metrics) ObserveOperation(action, class string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
	if class != "" {
		m.failures.WithLabelValues(action, class).Inc()
		return
	}
	m.operations.WithLabelValues(action).Inc()
}

func (m *Metrics) RateRefreshed() {
	if m == nil {
		return
	}
	m.rateRefreshes.Inc()
}

func (m *Metrics) SetAmp(scaled uint64) {
	if m == nil {
		return
	}
	m.amp.Set(float64(scaled))
}
