package observability

import (
	"time"

	"github.com/patrickwarner/decisionsdk/sdk"
)

// MetricsRegistry records client and engine metrics. It satisfies
// sdk.Metrics so one registry can be handed to both sides.
type MetricsRegistry interface {
	sdk.Metrics

	// Engine request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)
}

// PrometheusRegistry implements MetricsRegistry on the package's Prometheus
// collectors.
type PrometheusRegistry struct{}

func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementDecisions(outcome string) {
	DecisionCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordDecisionLatency(duration time.Duration) {
	DecisionLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementTracking(action, outcome string) {
	TrackingCount.WithLabelValues(action, outcome).Inc()
}

func (r *PrometheusRegistry) IncrementIdentityWrites() {
	IdentityWrites.Inc()
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	EngineRequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	EngineRequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementDecisions(outcome string)                                    {}
func (r *NoOpRegistry) RecordDecisionLatency(duration time.Duration)                         {}
func (r *NoOpRegistry) IncrementTracking(action, outcome string)                             {}
func (r *NoOpRegistry) IncrementIdentityWrites()                                             {}
func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
