// Package metrics exports evaluation measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chazu/makertron/pkg/session"
)

var _ session.Metrics = (*Metrics)(nil)

// Metrics implements session.Metrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec
	duration    prometheus.Histogram
	passes      prometheus.Histogram
	nodes       prometheus.Histogram
	cache       *prometheus.CounterVec
}

// New registers the evaluation collectors plus the Go runtime and process
// collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "makertron_evaluations_total",
				Help: "Evaluations finished, by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "makertron_evaluation_duration_seconds",
			Help:    "Wall time of one evaluation",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		passes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "makertron_resolver_passes",
			Help:    "Resolver passes per evaluation",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		nodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "makertron_graph_nodes",
			Help:    "Operation nodes per evaluation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "makertron_cache_lookups_total",
				Help: "Result cache lookups, by result",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		m.evaluations, m.duration, m.passes, m.nodes, m.cache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) EvaluationDone(outcome string, d time.Duration) {
	m.evaluations.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) GraphResolved(nodes, passes int) {
	m.nodes.Observe(float64(nodes))
	m.passes.Observe(float64(passes))
}

func (m *Metrics) CacheLookup(hit bool) {
	if hit {
		m.cache.WithLabelValues("hit").Inc()
	} else {
		m.cache.WithLabelValues("miss").Inc()
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
