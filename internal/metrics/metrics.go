// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Decisions counts PDP verdicts by backend and outcome
	// (allow, deny, error).
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgate",
		Name:      "decisions_total",
		Help:      "Policy decisions by backend and outcome.",
	}, []string{"backend", "outcome"})

	// Grants counts applied grants by backend and resulting status.
	Grants = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgate",
		Name:      "grants_total",
		Help:      "Permission grants by backend and status.",
	}, []string{"backend", "status"})

	// IntrospectionFailures counts requests rejected before a decision.
	IntrospectionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "authgate",
		Name:      "introspection_failures_total",
		Help:      "Token verifications that did not yield an identity.",
	})
)

const (
	OutcomeAllow = "allow"
	OutcomeDeny  = "deny"
	OutcomeError = "error"
)
