package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the trivia backend.
type Metrics struct {
	registry *prometheus.Registry

	AdmissionDecisions *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	LeaderboardRefresh *prometheus.CounterVec
	RefreshDuration    prometheus.Histogram
	RotationResets     prometheus.Counter
	AnswersRecorded    *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AdmissionDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "decisions_total",
				Help:      "Admission decisions by command, class and outcome",
			},
			[]string{"command", "class", "allowed"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		LeaderboardRefresh: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "leaderboard",
				Name:      "refreshes_total",
				Help:      "Leaderboard refresh attempts by outcome",
			},
			[]string{"outcome"}, // ok, error, skipped
		),
		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "leaderboard",
				Name:      "refresh_duration_seconds",
				Help:      "Leaderboard refresh duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RotationResets: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rotator",
				Name:      "pool_resets_total",
				Help:      "Session question pool refills",
			},
		),
		AnswersRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quiz",
				Name:      "answers_total",
				Help:      "Answers recorded by correctness",
			},
			[]string{"correct"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
