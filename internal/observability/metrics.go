package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects counters for the assignment and escalation engines.
type Metrics struct {
	registry *prometheus.Registry

	AssignmentsTotal   *prometheus.CounterVec
	NoAgentTotal       prometheus.Counter
	EscalationsTotal   prometheus.Counter
	FinalNoticesTotal  prometheus.Counter
	RetryCyclesTotal   prometheus.Counter
	RetryAssignedTotal prometheus.Counter
	TimerFailuresTotal *prometheus.CounterVec
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPErrorsTotal    *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewMetrics registers all collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		AssignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_assignments_total",
			Help: "Ledger rows opened, labelled by assignment type.",
		}, []string{"type"}),
		NoAgentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticket_assignments_no_agent_total",
			Help: "Auto-assign attempts that found no eligible agent.",
		}),
		EscalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticket_escalations_total",
			Help: "Completed SLA escalations.",
		}),
		FinalNoticesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticket_final_escalation_notices_total",
			Help: "SLA expiries that hit the top of the manager chain.",
		}),
		RetryCyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assignment_retry_cycles_total",
			Help: "Retry worker poll cycles.",
		}),
		RetryAssignedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assignment_retry_assigned_total",
			Help: "Tickets assigned by the retry worker.",
		}),
		TimerFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_timer_failures_total",
			Help: "Best-effort timer store calls that failed, labelled by operation.",
		}, []string{"op"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Failed HTTP requests by path, method and error code.",
		}, []string{"path", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	registry.MustRegister(
		m.AssignmentsTotal,
		m.NoAgentTotal,
		m.EscalationsTotal,
		m.FinalNoticesTotal,
		m.RetryCyclesTotal,
		m.RetryAssignedTotal,
		m.TimerFailuresTotal,
		m.HTTPRequestsTotal,
		m.HTTPErrorsTotal,
		m.HTTPDuration,
	)
	return m
}

// RecordRequest observes a completed HTTP request.
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAssignment counts a newly opened ledger row.
func (m *Metrics) RecordAssignment(assignmentType string) {
	if m == nil {
		return
	}
	m.AssignmentsTotal.WithLabelValues(assignmentType).Inc()
}

// RecordError counts a request that ended in a domain error.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(path, method, code).Inc()
}

// NoAgentInc counts an auto-assign attempt with no eligible agent.
func (m *Metrics) NoAgentInc() {
	if m == nil {
		return
	}
	m.NoAgentTotal.Inc()
}

// EscalationInc counts a completed escalation.
func (m *Metrics) EscalationInc() {
	if m == nil {
		return
	}
	m.EscalationsTotal.Inc()
}

// FinalNoticeInc counts an expiry that topped out the manager chain.
func (m *Metrics) FinalNoticeInc() {
	if m == nil {
		return
	}
	m.FinalNoticesTotal.Inc()
}

// RetryCycleInc counts one retry worker poll cycle.
func (m *Metrics) RetryCycleInc() {
	if m == nil {
		return
	}
	m.RetryCyclesTotal.Inc()
}

// RetryAssignedInc counts a ticket assigned by the retry worker.
func (m *Metrics) RetryAssignedInc() {
	if m == nil {
		return
	}
	m.RetryAssignedTotal.Inc()
}

// RecordTimerFailure counts a failed best-effort timer store call.
func (m *Metrics) RecordTimerFailure(op string) {
	if m == nil {
		return
	}
	m.TimerFailuresTotal.WithLabelValues(op).Inc()
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
