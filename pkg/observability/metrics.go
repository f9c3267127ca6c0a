package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the authorization core
type Metrics struct {
	// Authentication metrics
	AuthDecisionsTotal *prometheus.CounterVec // outcome: ok | reason code
	SessionsCreated    prometheus.Counter
	SessionsEvicted    prometheus.Counter

	// Authorization metrics
	RoleDenialsTotal  *prometheus.CounterVec // role
	ScopeFiltersTotal *prometheus.CounterVec // kind: none | department | self | no_access

	// Approved-access grant metrics
	GrantTransitionsTotal *prometheus.CounterVec // transition: requested | approved | rejected | revoked | expired
	GrantUsageTotal       prometheus.Counter
	GrantDenialsTotal     *prometheus.CounterVec // reason

	// Audit sink metrics
	AuditEventsTotal  *prometheus.CounterVec // event_type
	AuditWriteErrors  prometheus.Counter

	// Store metrics
	StoreOperationsTotal *prometheus.CounterVec // collection, op
	StoreErrorsTotal     *prometheus.CounterVec // collection, op
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AuthDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_auth_decisions_total",
				Help: "Authentication decisions by outcome",
			},
			[]string{"outcome"},
		),
		SessionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authcore_sessions_created_total",
				Help: "Sessions created at login",
			},
		),
		SessionsEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authcore_sessions_evicted_total",
				Help: "Prior sessions evicted by a superseding login",
			},
		),
		RoleDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_role_denials_total",
				Help: "Role guard denials by caller role",
			},
			[]string{"role"},
		),
		ScopeFiltersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_scope_filters_total",
				Help: "Scope filters built by kind",
			},
			[]string{"kind"},
		),
		GrantTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_grant_transitions_total",
				Help: "Approved-access grant state transitions",
			},
			[]string{"transition"},
		),
		GrantUsageTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authcore_grant_usage_total",
				Help: "Recorded uses of approved-access grants",
			},
		),
		GrantDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_grant_denials_total",
				Help: "Approved-access guard denials by reason",
			},
			[]string{"reason"},
		),
		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_audit_events_total",
				Help: "Audit events written by type",
			},
			[]string{"event_type"},
		),
		AuditWriteErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authcore_audit_write_errors_total",
				Help: "Swallowed audit sink write failures",
			},
		),
		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_store_operations_total",
				Help: "Document store operations by collection and op",
			},
			[]string{"collection", "op"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_store_errors_total",
				Help: "Document store errors by collection and op",
			},
			[]string{"collection", "op"},
		),
	}

	registry.MustRegister(
		m.AuthDecisionsTotal,
		m.SessionsCreated,
		m.SessionsEvicted,
		m.RoleDenialsTotal,
		m.ScopeFiltersTotal,
		m.GrantTransitionsTotal,
		m.GrantUsageTotal,
		m.GrantDenialsTotal,
		m.AuditEventsTotal,
		m.AuditWriteErrors,
		m.StoreOperationsTotal,
		m.StoreErrorsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
