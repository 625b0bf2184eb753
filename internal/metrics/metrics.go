// Package metrics exposes routing telemetry as Prometheus series. The
// registry implements domain.RouteObserver so the router stays free of any
// direct Prometheus dependency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geekspace/arbiter/internal/domain"
)

// Registry holds the router's Prometheus collectors.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal  *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	RetriesTotal   *prometheus.CounterVec
	FallbacksTotal *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_requests_total",
			Help: "Routed chat requests by serving provider, persona, and outcome",
		}, []string{"provider", "persona", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arbiter_request_latency_ms",
			Help:    "End-to-end routed request latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}, []string{"provider", "persona"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_retries_total",
			Help: "Primary-provider retries",
		}, []string{"provider"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_fallbacks_total",
			Help: "Fallback hops by failed and replacement provider",
		}, []string{"from", "to"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestLatency, m.RetriesTotal, m.FallbacksTotal)
	return m
}

// ObserveRequest records one completed routed request.
func (m *Registry) ObserveRequest(provider domain.Provider, persona domain.Persona, status string, latency time.Duration) {
	m.RequestsTotal.WithLabelValues(string(provider), string(persona), status).Inc()
	m.RequestLatency.WithLabelValues(string(provider), string(persona)).
		Observe(float64(latency.Milliseconds()))
}

// ObserveRetry records a primary-provider retry.
func (m *Registry) ObserveRetry(provider domain.Provider) {
	m.RetriesTotal.WithLabelValues(string(provider)).Inc()
}

// ObserveFallback records a fallback hop.
func (m *Registry) ObserveFallback(from, to domain.Provider) {
	m.FallbacksTotal.WithLabelValues(string(from), string(to)).Inc()
}

// Handler serves the /metrics endpoint.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
