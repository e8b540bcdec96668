package sdk

import "time"

// Metrics receives client-side counters. internal/observability provides a
// Prometheus-backed implementation.
type Metrics interface {
	IncrementDecisions(outcome string)
	RecordDecisionLatency(duration time.Duration)
	IncrementTracking(action, outcome string)
	IncrementIdentityWrites()
}

type noopMetrics struct{}

func (noopMetrics) IncrementDecisions(string)           {}
func (noopMetrics) RecordDecisionLatency(time.Duration) {}
func (noopMetrics) IncrementTracking(string, string)    {}
func (noopMetrics) IncrementIdentityWrites()            {}
