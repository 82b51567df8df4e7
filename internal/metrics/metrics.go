package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the moderation collectors and the registry they live in.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	actions   *prometheus.CounterVec
	txRetries *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// New creates a registry with the moderation collectors plus Go/process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_actions_total",
			Help: "Moderation operations by action and result.",
		}, []string{"action", "result"}),
		txRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_tx_retries_total",
			Help: "Moderation transactions retried after a conflict.",
		}, []string{"backend"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moderation_tx_duration_seconds",
			Help:    "Wall time of moderation operations including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}

	reg.MustRegister(
		m.actions,
		m.txRetries,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAction records one finished moderation operation
func (m *Metrics) ObserveAction(action, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, result).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// TxRetry records a transaction attempt that is about to be retried
func (m *Metrics) TxRetry(backend string) {
	if m == nil {
		return
	}
	m.txRetries.WithLabelValues(backend).Inc()
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
