package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task outcome labels
const (
	OutcomeSucceeded = "succeeded"
	OutcomeNoResults = "no-results"
	OutcomeFailed    = "failed"
)

// Match outcome labels
const (
	MatchExact   = "exact"
	MatchLLM     = "llm"
	MatchNone    = "none"
	MatchFailure = "failure"
)

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	SearchesTotal       prometheus.Counter
	ActiveSessions      prometheus.Gauge
	TasksTotal          *prometheus.CounterVec
	TaskDuration        *prometheus.HistogramVec
	MatchOutcomes       *prometheus.CounterVec
	HumanInputTotal     *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	Registry            *prometheus.Registry
}

// New creates the collectors and registers them on r
func New(r *prometheus.Registry) *Metrics {
	m := &Metrics{
		SearchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rateprobe_searches_total",
			Help: "Accepted search requests",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rateprobe_active_sessions",
			Help: "Browser sessions currently open",
		}),
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rateprobe_vendor_tasks_total",
			Help: "Finished vendor tasks by outcome",
		}, []string{"vendor", "outcome"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rateprobe_vendor_task_duration_seconds",
			Help:    "Wall-clock duration of vendor tasks",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"vendor"}),
		MatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rateprobe_match_outcomes_total",
			Help: "Candidate resolution outcomes",
		}, []string{"outcome"}),
		HumanInputTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rateprobe_human_input_total",
			Help: "Human input requests by outcome",
		}, []string{"outcome"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		Registry: r,
	}

	r.MustRegister(
		m.SearchesTotal,
		m.ActiveSessions,
		m.TasksTotal,
		m.TaskDuration,
		m.MatchOutcomes,
		m.HumanInputTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsTotal,
	)

	return m
}

func (m *Metrics) IncSearches() {
	if m == nil {
		return
	}
	m.SearchesTotal.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) ObserveTask(vendor, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(vendor, outcome).Inc()
	m.TaskDuration.WithLabelValues(vendor).Observe(d.Seconds())
}

func (m *Metrics) ObserveMatch(outcome string) {
	if m == nil {
		return
	}
	m.MatchOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHumanInput(outcome string) {
	if m == nil {
		return
	}
	m.HumanInputTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
