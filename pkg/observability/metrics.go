package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for engine operations
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	graphsActive      prometheus.Gauge
}

// NewMetrics registers the engine metrics on the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nffg",
			Name:      "engine_operations_total",
			Help:      "Engine operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nffg",
			Name:      "engine_operation_duration_seconds",
			Help:      "Engine operation latency, dominated by controller calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		graphsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nffg",
			Name:      "graphs_active",
			Help:      "Graphs currently realized in the controller.",
		}),
	}
}

// ObserveOperation records one engine operation
func (m *Metrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// GraphActivated bumps the active-graph gauge
func (m *Metrics) GraphActivated() {
	if m == nil {
		return
	}
	m.graphsActive.Inc()
}

// GraphDeactivated drops the active-graph gauge
func (m *Metrics) GraphDeactivated() {
	if m == nil {
		return
	}
	m.graphsActive.Dec()
}
