// Package metrics exposes Prometheus metrics of backend calls and container
// transitions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "labcentral"

// Metrics holds Prometheus metrics for one process.
type Metrics struct {
	registry *prometheus.Registry

	BackendRequests        *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec
	ContainerTransitions   *prometheus.CounterVec
}

// New creates metrics on a private registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		BackendRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "requests_total",
				Help:      "Total number of backend API requests",
			},
			[]string{"method", "route", "status"},
		),
		BackendRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "request_duration_seconds",
				Help:      "Backend API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ContainerTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "container",
				Name:      "transitions_total",
				Help:      "Exercise container starts and stops by outcome",
			},
			[]string{"action", "result"},
		),
	}
}

// ObserveRequest records one backend call. It implements api.Observer.
// A status of 0 means the request never got a response.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.BackendRequests.WithLabelValues(method, route, code).Inc()
	m.BackendRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveTransition records the outcome of a start or stop.
func (m *Metrics) ObserveTransition(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ContainerTransitions.WithLabelValues(action, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
