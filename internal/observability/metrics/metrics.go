// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's collectors on a dedicated registry so tests can
// construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsProcessed *prometheus.CounterVec
	ClassifyDuration   prometheus.Histogram
	ClassifierFailures *prometheus.CounterVec
	RuleReloads        *prometheus.CounterVec
	ActiveRules        prometheus.Gauge
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		DocumentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autolabel_documents_processed_total",
			Help: "Documents processed, partitioned by terminal outcome.",
		}, []string{"outcome"}),
		ClassifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autolabel_classify_duration_seconds",
			Help:    "End-to-end classification latency per document.",
			Buckets: prometheus.DefBuckets,
		}),
		ClassifierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autolabel_classifier_failures_total",
			Help: "Individual classifier failures, partitioned by classifier.",
		}, []string{"classifier"}),
		RuleReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autolabel_rule_reloads_total",
			Help: "Rule set reloads, partitioned by result.",
		}, []string{"result"}),
		ActiveRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autolabel_active_rules",
			Help: "Rules in the currently active rule set.",
		}),
	}

	registry.MustRegister(
		m.DocumentsProcessed,
		m.ClassifyDuration,
		m.ClassifierFailures,
		m.RuleReloads,
		m.ActiveRules,
	)
	return m
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
