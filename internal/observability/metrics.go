// Package observability exposes Prometheus metrics for the API and worker.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/odyssey-erp/fincore/internal/jobs"
)

// Metrics collects HTTP and financial operation metrics on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	ledgerPosts     *prometheus.CounterVec
	lockRejections  *prometheus.CounterVec
	cacheEvents     *prometheus.CounterVec
	invalidations   *prometheus.CounterVec
	jobs            *jobmetrics.Metrics
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fincore_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fincore_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fincore_workflow_transitions_total",
		Help: "Workflow transitions by document kind, edge and outcome.",
	}, []string{"kind", "from", "to", "outcome"})
	ledgerPosts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fincore_ledger_entries_posted_total",
		Help: "Ledger entries appended by entry type.",
	}, []string{"entry_type"})
	lockRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fincore_period_lock_rejections_total",
		Help: "Operations rejected because the accounting period is locked.",
	}, []string{"operation"})
	cacheEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fincore_report_cache_events_total",
		Help: "Report cache hits, misses and invalidations.",
	}, []string{"report", "result"})
	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fincore_report_invalidation_broadcasts_total",
		Help: "Cross-process report invalidation outcomes.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, transitions, ledgerPosts, lockRejections, cacheEvents, invalidations)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		transitions:     transitions,
		ledgerPosts:     ledgerPosts,
		lockRejections:  lockRejections,
		cacheEvents:     cacheEvents,
		invalidations:   invalidations,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and duration for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Jobs returns the background job collectors sharing this registry.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// ObserveTransition counts a workflow transition attempt.
func (m *Metrics) ObserveTransition(kind, from, to, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind, from, to, outcome).Inc()
}

// ObserveLedgerPost counts an appended ledger entry.
func (m *Metrics) ObserveLedgerPost(entryType string) {
	if m == nil {
		return
	}
	m.ledgerPosts.WithLabelValues(entryType).Inc()
}

// ObserveLockRejection counts an operation refused by the period lock.
func (m *Metrics) ObserveLockRejection(operation string) {
	if m == nil {
		return
	}
	m.lockRejections.WithLabelValues(operation).Inc()
}

// ObserveCache counts a report cache event.
func (m *Metrics) ObserveCache(report, result string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(report, result).Inc()
}

// ObserveInvalidation counts a broadcast outcome.
func (m *Metrics) ObserveInvalidation(outcome string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
