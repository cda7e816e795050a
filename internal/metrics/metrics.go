// Package metrics exposes Prometheus counters for auth outcomes and HTTP
// traffic. Every method is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	gate      *prometheus.CounterVec

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New builds a private registry so tests can create as many instances as
// they like without colliding in the default registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warrant_logins_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warrant_refreshes_total",
				Help: "Refresh attempts by outcome.",
			},
			[]string{"outcome"},
		),
		gate: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warrant_gate_decisions_total",
				Help: "Request gate decisions by route class and outcome.",
			},
			[]string{"class", "outcome"},
		),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	m.registry.MustRegister(
		m.logins,
		m.refreshes,
		m.gate,
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GateDecision(class, outcome string) {
	if m == nil {
		return
	}
	m.gate.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.httpInFlight.Add(delta)
}
