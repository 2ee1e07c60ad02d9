// Package metrics exposes Prometheus collectors for both planes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one service. Each instance owns its
// registry so several services (or tests) can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	AuthEvents *prometheus.CounterVec

	ProvisioningCalls    *prometheus.CounterVec
	ProvisioningDuration *prometheus.HistogramVec

	TrustGateRejections prometheus.Counter
}

// New creates and registers the collectors under the given namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "events_total",
				Help:      "Session authority outcomes by operation",
			},
			[]string{"operation", "outcome"},
		),
		ProvisioningCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provisioning",
				Name:      "calls_total",
				Help:      "Outbound calls to tenant instances",
			},
			[]string{"operation", "outcome"},
		),
		ProvisioningDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provisioning",
				Name:      "call_duration_seconds",
				Help:      "Duration of outbound calls to tenant instances",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		TrustGateRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "internal",
				Name:      "rejected_total",
				Help:      "Internal requests rejected for a missing or wrong API key",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCount,
		m.RequestDuration,
		m.AuthEvents,
		m.ProvisioningCalls,
		m.ProvisioningDuration,
		m.TrustGateRejections,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// AuthEvent counts a session operation outcome such as ("login", "invalid_credentials").
func (m *Metrics) AuthEvent(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(operation, outcome).Inc()
}

// ObserveProvisioning records one outbound provisioning call.
func (m *Metrics) ObserveProvisioning(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ProvisioningCalls.WithLabelValues(operation, outcome).Inc()
	m.ProvisioningDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RejectInternal counts a trust-gate rejection.
func (m *Metrics) RejectInternal() {
	if m == nil {
		return
	}
	m.TrustGateRejections.Inc()
}
