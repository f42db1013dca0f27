package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Domain metrics
	AuthorizationDecisions *prometheus.CounterVec
	ApprovalSubmissions    *prometheus.CounterVec
	ApprovalDecisions      *prometheus.CounterVec
	NotificationsQueued    *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		DatabaseOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		AuthorizationDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_decisions_total",
			Help:      "Permission checks by outcome",
		}, []string{"result"}),
		ApprovalSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_submissions_total",
			Help:      "Approval request submissions by type, scope and whether a pending request was refreshed",
		}, []string{"type", "scope", "outcome"}),
		ApprovalDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Approval adjudications by scope and resulting status",
		}, []string{"scope", "status"}),
		NotificationsQueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_queued_total",
			Help:      "Notification intents by template and enqueue result",
		}, []string{"template", "status"}),
	}
}

func (m *Metrics) ObserveAuthorization(granted bool) {
	if m == nil {
		return
	}
	result := "deny"
	if granted {
		result = "grant"
	}
	m.AuthorizationDecisions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSubmission(requestType, scope string, refreshed bool) {
	if m == nil {
		return
	}
	outcome := "created"
	if refreshed {
		outcome = "refreshed"
	}
	m.ApprovalSubmissions.WithLabelValues(requestType, scope, outcome).Inc()
}

func (m *Metrics) ObserveDecision(scope, status string) {
	if m == nil {
		return
	}
	m.ApprovalDecisions.WithLabelValues(scope, status).Inc()
}

func (m *Metrics) ObserveNotification(template string, err error) {
	if m == nil {
		return
	}
	status := "queued"
	if err != nil {
		status = "error"
	}
	m.NotificationsQueued.WithLabelValues(template, status).Inc()
}

func (m *Metrics) ObserveDatabase(operation string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DatabaseOperations.WithLabelValues(operation, status).Inc()
}
