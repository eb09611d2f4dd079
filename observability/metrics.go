// Package observability exposes the gateway's Prometheus metrics (§4.10):
// request counters, cache event counters, LLM cost totals, request
// latency histograms, and an active-lock gauge.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the gateway reports, wrapping
// prometheus.CounterVec/HistogramVec/Gauge behind small helper methods so
// call sites never touch label ordering directly.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	cacheEvents     *prometheus.CounterVec
	llmCostTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeLocks     prometheus.Gauge
	registry        *prometheus.Registry
}

// durationBuckets spans sub-ms cache hits through multi-second generator
// calls, exactly per §4.10.
var durationBuckets = []float64{0.010, 0.050, 0.100, 0.250, 0.500, 1, 2.5, 5, 10, 30}

// New registers every collector against a fresh registry (not the global
// default, so tests can build an isolated Metrics instance per case).
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total requests handled, labeled by endpoint and status.",
		}, []string{"endpoint", "status"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_events_total",
			Help: "Cache resolution outcomes, labeled by type (exact|semantic|miss).",
		}, []string{"type"}),
		llmCostTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_cost_usd_total",
			Help: "Cumulative upstream generation cost in USD, labeled by provider and model.",
		}, []string{"provider", "model"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request latency in seconds, labeled by endpoint.",
			Buckets: durationBuckets,
		}, []string{"endpoint"}),
		activeLocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_locks",
			Help: "Number of single-flight locks currently held by a generator call in progress.",
		}),
		registry: reg,
	}

	reg.MustRegister(m.requestsTotal, m.cacheEvents, m.llmCostTotal, m.requestDuration, m.activeLocks)
	return m
}

// Handler returns the /metrics exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments requests_total for one completed request.
func (m *Metrics) RecordRequest(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// RecordCacheEvent increments cache_events_total for one resolution outcome.
func (m *Metrics) RecordCacheEvent(eventType string) {
	m.cacheEvents.WithLabelValues(eventType).Inc()
}

// RecordCost adds to llm_cost_usd_total for one generator call.
func (m *Metrics) RecordCost(provider, model string, costUSD float64) {
	m.llmCostTotal.WithLabelValues(provider, model).Add(costUSD)
}

// ObserveDuration records one request's latency in request_duration_seconds.
func (m *Metrics) ObserveDuration(endpoint string, seconds float64) {
	m.requestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// LockAcquired/LockReleased track active_locks around a winner's generator
// call.
func (m *Metrics) LockAcquired() { m.activeLocks.Inc() }
func (m *Metrics) LockReleased() { m.activeLocks.Dec() }
