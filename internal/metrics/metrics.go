// Package metrics holds the Prometheus collectors shared by both services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeRequested        = "requested"
	OutcomeAlreadyRequested = "already_requested"
	OutcomePublishFailed    = "publish_failed"

	OutcomeActivated = "activated"
	OutcomeDuplicate = "duplicate"
	OutcomeOrphaned  = "orphaned"
	OutcomeError     = "error"

	OutcomeProcessed    = "processed"
	OutcomePublished    = "published"
	OutcomeInvalidRole  = "invalid_role"
	OutcomeDeadLettered = "dead_lettered"

	OutcomeWelcome   = "welcome"
	OutcomeCountdown = "countdown"
	OutcomeScheduled = "scheduled"
	OutcomeInvalid   = "invalid_token"
)

var (
	// TicketLinkRequestsTotal counts request-link calls by outcome.
	TicketLinkRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_link_requests_total",
			Help: "Ticket link requests by outcome",
		},
		[]string{"outcome"},
	)

	// TicketLinkActivationsTotal counts applied result messages by outcome.
	TicketLinkActivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_link_activations_total",
			Help: "Ticket link result messages applied to the store by outcome",
		},
		[]string{"outcome"},
	)

	// TicketRedemptionsTotal counts buy-ticket calls by outcome.
	TicketRedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_redemptions_total",
			Help: "Ticket page redemptions by outcome",
		},
		[]string{"outcome"},
	)

	// RuleEvaluationsTotal counts rule engine evaluations by role and outcome.
	RuleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_evaluations_total",
			Help: "Rule engine evaluations by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	// ConsumedMessagesTotal counts consumed queue messages by topic and outcome.
	ConsumedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_consumed_messages_total",
			Help: "Queue messages consumed by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	// HTTPRequestDuration observes HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketing_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
