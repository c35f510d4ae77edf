// Package metrics exposes Prometheus instrumentation for the platform.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the platform's Prometheus collectors.
type Metrics struct {
	registry     *prometheus.Registry
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	mailSends    *prometheus.CounterVec
}

// New creates and registers the platform collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served.",
		}),
		mailSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_sends_total",
			Help: "Newsletter email sends by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.inFlight, m.mailSends)
	return m
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncrementInFlight marks a request in progress.
func (m *Metrics) IncrementInFlight() { m.inFlight.Inc() }

// DecrementInFlight marks a request finished.
func (m *Metrics) DecrementInFlight() { m.inFlight.Dec() }

// RecordMailSend records one newsletter send outcome.
func (m *Metrics) RecordMailSend(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.mailSends.WithLabelValues(outcome).Inc()
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
