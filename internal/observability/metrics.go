package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ticket update outcomes.
const (
	UpdateCommitted         = "committed"
	UpdateVersionConflict   = "version_conflict"
	UpdateForbidden         = "forbidden"
	UpdateInvalidTransition = "invalid_transition"
	UpdateNotFound          = "not_found"
	UpdateInvalid           = "invalid"
	UpdateFailed            = "error"
)

// Metrics holds the service collectors on a private registry. A nil
// *Metrics records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpErrors      *prometheus.CounterVec
	ticketUpdates   *prometheus.CounterVec
	slaBreaches     *prometheus.CounterVec
	commentsWritten *prometheus.CounterVec
}

// NewMetrics registers the collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_errors_total",
			Help: "HTTP errors by error code",
		}, []string{"method", "path", "code"}),
		ticketUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_ticket_updates_total",
			Help: "Ticket update attempts by outcome",
		}, []string{"result"}),
		slaBreaches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_sla_breaches_total",
			Help: "Tickets first seen past their SLA deadline",
		}, []string{"priority"}),
		commentsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_comment_operations_total",
			Help: "Comment additions and deletions",
		}, []string{"operation"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest counts a served request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError counts an error response by code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, path, code).Inc()
}

// RecordTicketUpdate counts a reconcile attempt by outcome.
func (m *Metrics) RecordTicketUpdate(result string) {
	if m == nil {
		return
	}
	m.ticketUpdates.WithLabelValues(result).Inc()
}

// RecordSLABreach counts a newly detected breach.
func (m *Metrics) RecordSLABreach(priority string) {
	if m == nil {
		return
	}
	m.slaBreaches.WithLabelValues(priority).Inc()
}

// RecordComment counts an "added" or "deleted" comment.
func (m *Metrics) RecordComment(operation string) {
	if m == nil {
		return
	}
	m.commentsWritten.WithLabelValues(operation).Inc()
}
