package metrics

import "time"

// OutcomeLabel enumerates reconciliation outcomes for counters.
type OutcomeLabel string

const (
	OutcomeEmpty     OutcomeLabel = "empty"
	OutcomeDiscarded OutcomeLabel = "discarded"
	OutcomeDelivered OutcomeLabel = "delivered"
	OutcomeFailed    OutcomeLabel = "failed"
)

// Recorder defines observability hooks for accrual, flush and sync metrics,
// backend requests and the agent's own HTTP API.
// Implementations may forward to Prometheus or similar backends.
type Recorder interface {
	IncFlush(success bool)
	ObserveSessionDuration(d time.Duration)
	IncSyncOutcome(endpoint string, outcome OutcomeLabel)
	AddDeliveredSeconds(endpoint string, seconds int64)
	SetAccruing(on bool)
	SetPendingMilliseconds(ms int64)
	IncLifecycleEvent(state string)
	ObserveRequestDuration(path string, d time.Duration, status int)
	ObserveHTTPRequest(route string, d time.Duration, status int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncFlush(bool)                                     {}
func (NoopRecorder) ObserveSessionDuration(time.Duration)              {}
func (NoopRecorder) IncSyncOutcome(string, OutcomeLabel)               {}
func (NoopRecorder) AddDeliveredSeconds(string, int64)                 {}
func (NoopRecorder) SetAccruing(bool)                                  {}
func (NoopRecorder) SetPendingMilliseconds(int64)                      {}
func (NoopRecorder) IncLifecycleEvent(string)                          {}
func (NoopRecorder) ObserveRequestDuration(string, time.Duration, int) {}
func (NoopRecorder) ObserveHTTPRequest(string, time.Duration, int)     {}
