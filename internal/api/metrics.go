package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imf-gadgets/gadget-core/internal/gadget"
)

// Metrics holds the Prometheus collectors exposed on the metrics endpoint.
//
// Metrics is a gadget.EventSink: registering it with the gadget service
// counts every committed lifecycle change.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	LifecycleTransitions *prometheus.CounterVec
	WebSocketClients     prometheus.GaugeFunc
}

// NewMetrics creates the collectors and registers them on a fresh registry
// together with the Go runtime and process collectors. clients, when
// non-nil, reports the live WebSocket connection count.
func NewMetrics(clients func() int) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gadgetcore_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gadgetcore_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LifecycleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gadgetcore_lifecycle_transitions_total",
				Help: "Total number of committed gadget lifecycle events by type",
			},
			[]string{"event"},
		),
	}

	registry.MustRegister(m.RequestsTotal)
	registry.MustRegister(m.RequestDuration)
	registry.MustRegister(m.LifecycleTransitions)

	if clients != nil {
		m.WebSocketClients = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "gadgetcore_websocket_clients",
				Help: "Number of connected WebSocket clients",
			},
			func() float64 { return float64(clients()) },
		)
		registry.MustRegister(m.WebSocketClients)
	}

	return m
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Publish counts a lifecycle event.
func (m *Metrics) Publish(_ context.Context, e gadget.Event) {
	m.LifecycleTransitions.WithLabelValues(string(e.Type)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry exposes the underlying registry so other components can add
// their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
