package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for pipeline executions. All metrics
// are namespaced "agent".
//
// Exposed series:
//   - agent_pipeline_runs_total{status}: completed runs by outcome
//     (answered, empty).
//   - agent_pipeline_fallbacks_total{from,to}: fallback reroutes.
//   - agent_node_duration_seconds{node}: per-node latency histogram.
//   - agent_collected_items: items per successful collection.
type Metrics struct {
	runs         *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	items        prometheus.Histogram
}

// NewMetrics registers pipeline metrics with the given registry. A nil
// registry uses the process-global default.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent",
			Name:      "pipeline_runs_total",
			Help:      "Completed pipeline runs by outcome",
		}, []string{"status"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent",
			Name:      "pipeline_fallbacks_total",
			Help:      "Fallback reroutes from one source to another",
		}, []string{"from", "to"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agent",
			Name:      "node_duration_seconds",
			Help:      "Pipeline node execution duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"node"}),
		items: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agent",
			Name:      "collected_items",
			Help:      "Items returned per successful collection",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
	}
}

func (m *Metrics) observeRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

func (m *Metrics) observeFallback(from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from, to).Inc()
}

func (m *Metrics) observeNode(node string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

func (m *Metrics) observeItems(n int) {
	if m == nil {
		return
	}
	m.items.Observe(float64(n))
}
