// Package metrics declares the service's Prometheus collectors. The default
// registry is exposed on /metrics by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts counts auth flow executions by flow and outcome.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trendpulse",
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "Auth flow executions by flow and outcome.",
	}, []string{"flow", "outcome"})

	// ConnectorRequests counts trend connector lookups by provider and
	// outcome (success, failure, or cache_hit).
	ConnectorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trendpulse",
		Subsystem: "trends",
		Name:      "connector_requests_total",
		Help:      "Trend connector lookups by provider and outcome.",
	}, []string{"provider", "outcome"})
)
