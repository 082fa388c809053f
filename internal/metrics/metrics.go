// Package metrics provides the Prometheus collectors for transport attempts,
// sync pushes and pulls, and the reference service's request handling.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arksync"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	TransportAttempts *prometheus.CounterVec
	PushTotal         *prometheus.CounterVec
	PushDuration      *prometheus.HistogramVec
	PullTotal         *prometheus.CounterVec
	BackgroundErrors  *prometheus.CounterVec
	ServerRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransportAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "attempts_total",
				Help:      "Remote request attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		PushTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "push_total",
				Help:      "Collection pushes by collection and status",
			},
			[]string{"collection", "status"},
		),
		PushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "push_duration_seconds",
				Help:      "Duration of collection pushes in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"collection"},
		),
		PullTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "pull_total",
				Help:      "Snapshot pulls by outcome",
			},
			[]string{"outcome"},
		),
		BackgroundErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "background_errors_total",
				Help:      "Fire-and-forget tasks that failed",
			},
			[]string{"task"},
		),
		ServerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "Requests served by route and status code",
			},
			[]string{"route", "code"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.TransportAttempts,
			m.PushTotal,
			m.PushDuration,
			m.PullTotal,
			m.BackgroundErrors,
			m.ServerRequests,
		)
	}
	return m
}

// Attempt records one transport attempt.
func (m *Metrics) Attempt(method, outcome string) {
	if m == nil {
		return
	}
	m.TransportAttempts.WithLabelValues(method, outcome).Inc()
}

// Push records a finished collection push.
func (m *Metrics) Push(collection string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.PushTotal.WithLabelValues(collection, status(err)).Inc()
	m.PushDuration.WithLabelValues(collection).Observe(d.Seconds())
}

// Pull records a snapshot pull outcome.
func (m *Metrics) Pull(outcome string) {
	if m == nil {
		return
	}
	m.PullTotal.WithLabelValues(outcome).Inc()
}

// Background records a failed fire-and-forget task.
func (m *Metrics) Background(task string) {
	if m == nil {
		return
	}
	m.BackgroundErrors.WithLabelValues(task).Inc()
}

// Request records a served request.
func (m *Metrics) Request(route, code string) {
	if m == nil {
		return
	}
	m.ServerRequests.WithLabelValues(route, code).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
