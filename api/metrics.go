package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linesmerrill/esg-identity-api/notifications"
)

// Metrics is the Prometheus metric set of the service: HTTP traffic, invitation
// lifecycle events, notification outcomes and role migrations.
type Metrics struct {
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	InvitationEvents     *prometheus.CounterVec
	NotificationOutcomes *prometheus.CounterVec
	RoleMigrations       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers every metric with reg. Pass prometheus.NewRegistry() in tests.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esg_identity_http_requests_total",
			Help: "HTTP requests by method, route template and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "esg_identity_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route template",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		InvitationEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esg_identity_invitation_events_total",
			Help: "Invitation lifecycle transitions by event",
		}, []string{"event"}),
		NotificationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esg_identity_notifications_total",
			Help: "Invitation email attempts by outcome",
		}, []string{"outcome"}),
		RoleMigrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esg_identity_role_migrations_total",
			Help: "Role migrations by outcome (completed, failed, partial)",
		}, []string{"outcome"}),
		gatherer: reg,
	}
}

// RecordInvitationEvent counts n lifecycle events of one kind
func (m *Metrics) RecordInvitationEvent(event string, n int) {
	m.InvitationEvents.WithLabelValues(event).Add(float64(n))
}

// RecordRoleMigration counts one role migration outcome
func (m *Metrics) RecordRoleMigration(outcome string) {
	m.RoleMigrations.WithLabelValues(outcome).Inc()
}

// ObserveNotification is a notifications.Observer
func (m *Metrics) ObserveNotification(_ notifications.InvitationDetails, outcome notifications.Outcome) {
	label := "failed"
	if outcome.Delivered {
		label = "delivered"
	}
	m.NotificationOutcomes.WithLabelValues(label).Inc()
}

// ObserveRequest records one served request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
