package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sifan077/shortng/internal/app/model"
)

const namespace = "shortng"

// Metrics holds the service collectors.
type Metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	decisions *prometheus.CounterVec
	saves     *prometheus.CounterVec
	responses *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edit_decisions_total",
			Help:      "Overwrite checks by decision.",
		}, []string{"decision"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_saved_total",
			Help:      "Stored viewer states by request source.",
		}, []string{"source", "overwrite"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shorten_responses_total",
			Help:      "Shorten outcomes by request source and error kind.",
		}, []string{"source", "outcome"}),
	}
	reg.MustRegister(m.requests, m.latency, m.decisions, m.saves, m.responses)
	return m
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveShorten records the outcome of a shorten call, "ok" or an error kind.
func (m *Metrics) ObserveShorten(source, outcome string) {
	m.responses.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) EditDecision(decision model.EditDecision) {
	m.decisions.WithLabelValues(decision.String()).Inc()
}

func (m *Metrics) LinkSaved(source model.RequestSource, overwrite bool) {
	m.saves.WithLabelValues(source.String(), strconv.FormatBool(overwrite)).Inc()
}
