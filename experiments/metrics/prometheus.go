package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const subsystem = "search"

// Prometheus holds the search metric vectors registered once per registry.
type Prometheus struct {
	searchesTotal   *prometheus.CounterVec
	iterationsTotal *prometheus.CounterVec
	playoutsTotal   *prometheus.CounterVec
	solvedTotal     *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	treeSize        *prometheus.GaugeVec
}

func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		// Labels:
		//   - agent: agent name
		//   - tree: "reused" or "rebuilt"
		searchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "searches_total",
				Help:      "Total move searches by agent and tree reuse",
			},
			[]string{"agent", "tree"},
		),
		iterationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "iterations_total",
				Help:      "Total search iterations by agent",
			},
			[]string{"agent"},
		),
		playoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "playouts_total",
				Help:      "Total playouts run to a terminal state by agent",
			},
			[]string{"agent"},
		),
		solvedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solved_roots_total",
				Help:      "Total searches that proved the root position by agent",
			},
			[]string{"agent"},
		),
		durationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "duration_seconds",
				Help:      "Move search duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"agent"},
		),
		treeSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tree_nodes",
				Help:      "Nodes in the search tree after the latest search",
			},
			[]string{"agent"},
		),
	}
}

// Collector returns a collector reporting under the given agent label.
func (p *Prometheus) Collector(agent string) Collector {
	return &prometheusCollector{collector: collector{}, metrics: p, agent: agent}
}

type prometheusCollector struct {
	collector
	metrics *Prometheus
	agent   string
}

func (c *prometheusCollector) Complete() SearchMetric {
	metric := c.collector.Complete()

	tree := "rebuilt"
	if metric.TreeReused {
		tree = "reused"
	}
	c.metrics.searchesTotal.WithLabelValues(c.agent, tree).Inc()
	c.metrics.iterationsTotal.WithLabelValues(c.agent).Add(float64(metric.Iterations))
	c.metrics.playoutsTotal.WithLabelValues(c.agent).Add(float64(metric.Playouts))
	if metric.RootSolved {
		c.metrics.solvedTotal.WithLabelValues(c.agent).Inc()
	}
	c.metrics.durationSeconds.WithLabelValues(c.agent).Observe(metric.Duration.Seconds())
	c.metrics.treeSize.WithLabelValues(c.agent).Set(float64(metric.TreeSize))
	return metric
}
