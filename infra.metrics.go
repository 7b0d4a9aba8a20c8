package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	inProgress prometheus.Gauge
	operations *prometheus.CounterVec
}

// NewMetrics registers the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		durations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		inProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_progress",
				Help: "Number of HTTP requests being processed.",
			},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "book_operations_total",
				Help: "Total number of book operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
	}
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestStarted tracks an inflight request and returns its completion hook.
func (m *Metrics) RequestStarted() func(method, path string, status int, d time.Duration) {
	if m == nil {
		return func(string, string, int, time.Duration) {}
	}
	m.inProgress.Inc()
	return func(method, path string, status int, d time.Duration) {
		m.inProgress.Dec()
		route := MetricsRoute(path)
		m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.durations.WithLabelValues(method, route).Observe(d.Seconds())
	}
}

// RecordBookOperation counts a service operation by its outcome.
func (m *Metrics) RecordBookOperation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, OperationOutcome(err)).Inc()
}

// OperationOutcome names the kind of result of a service call.
func OperationOutcome(err error) string {
	var (
		verr *ValidationError
		rerr *InvalidRangeError
		nerr *NotFoundError
		derr *DuplicateError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &verr), errors.As(err, &rerr):
		return "invalid"
	case errors.As(err, &nerr):
		return "not_found"
	case errors.As(err, &derr):
		return "duplicate"
	default:
		return "error"
	}
}

// MetricsRoute collapses book ids in a request path to keep labels bounded.
func MetricsRoute(path string) string {
	const prefix = "/v1/books/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
	if rest == "" || rest == "search" {
		return path
	}
	return prefix + ":id"
}
