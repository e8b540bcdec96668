package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// decision calls labelled by outcome kind
	DecisionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisionsdk_decisions_total",
			Help: "Total decision requests by outcome",
		},
		[]string{"outcome"},
	)

	// end-to-end decision latency as seen by the client
	DecisionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decisionsdk_decision_duration_seconds",
			Help:    "Histogram of decision request latencies",
			Buckets: prometheus.DefBuckets,
		},
	)

	// profile and pixel calls labelled by action and outcome
	TrackingCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisionsdk_tracking_total",
			Help: "Total tracking and profile calls",
		},
		[]string{"action", "outcome"},
	)

	// user keys written to the identity store
	IdentityWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "decisionsdk_identity_writes_total",
			Help: "Total user keys persisted to the identity store",
		},
	)

	// engine requests per endpoint, method and status code
	EngineRequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisionsdk_engine_requests_total",
			Help: "Total requests served by the local engine",
		},
		[]string{"endpoint", "method", "status"},
	)

	// engine request latency in seconds per endpoint/method
	EngineRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "decisionsdk_engine_request_duration_seconds",
			Help:    "Histogram of local engine request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		DecisionCount,
		DecisionLatency,
		TrackingCount,
		IdentityWrites,
		EngineRequestCount,
		EngineRequestLatency,
	)
}
