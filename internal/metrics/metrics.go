// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LoginAttempts         *prometheus.CounterVec
	ApplicationsCreated   prometheus.Counter
	ApplicationsSubmitted prometheus.Counter
	DraftSaves            *prometheus.CounterVec
	DocumentsUploaded     *prometheus.CounterVec
	ReviewTransitions     *prometheus.CounterVec
	SessionsPurged        prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),
		ApplicationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "applications_created_total",
			Help:      "Draft applications created",
		}),
		ApplicationsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "applications_submitted_total",
			Help:      "Applications submitted for review",
		}),
		DraftSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "draft_saves_total",
			Help:      "Draft writes by kind",
		}, []string{"kind"}),
		DocumentsUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "documents_uploaded_total",
			Help:      "Document uploads by slot and result",
		}, []string{"document_type", "result"}),
		ReviewTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "review_transitions_total",
			Help:      "Review status transitions by target status",
		}, []string{"status"}),
		SessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "sessions_purged_total",
			Help:      "Stale sessions deleted by the reaper",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttempts,
		m.ApplicationsCreated,
		m.ApplicationsSubmitted,
		m.DraftSaves,
		m.DocumentsUploaded,
		m.ReviewTransitions,
		m.SessionsPurged,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveApplicationCreated() {
	if m == nil {
		return
	}
	m.ApplicationsCreated.Inc()
}

func (m *Metrics) ObserveSubmitted() {
	if m == nil {
		return
	}
	m.ApplicationsSubmitted.Inc()
}

func (m *Metrics) ObserveDraftSave(kind string) {
	if m == nil {
		return
	}
	m.DraftSaves.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveUpload(documentType, result string) {
	if m == nil {
		return
	}
	m.DocumentsUploaded.WithLabelValues(documentType, result).Inc()
}

func (m *Metrics) ObserveReview(status string) {
	if m == nil {
		return
	}
	m.ReviewTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSessionsPurged(n int64) {
	if m == nil {
		return
	}
	m.SessionsPurged.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
