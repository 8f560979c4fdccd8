package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
)

// Triggers recorded with AccrualStarted.
const (
	TriggerStart      = "start"
	TriggerForeground = "foreground"
	TriggerReset      = "reset"
)

// AccrualStarted is emitted when the tracker begins accumulating foreground time.
type AccrualStarted struct {
	BaseEvent
	Trigger string `json:"trigger"`
}

// NewAccrualStarted creates an AccrualStarted event.
func NewAccrualStarted(sessionID, trigger string, at time.Time) (*AccrualStarted, error) {
	payload, err := marshalPayload(TypeAccrualStarted, sessionID, map[string]any{
		"trigger": trigger,
	})
	if err != nil {
		return nil, err
	}
	return &AccrualStarted{
		BaseEvent: newBase(sessionID, TypeAccrualStarted, at, payload),
		Trigger:   trigger,
	}, nil
}

// AccrualStopped is emitted when accumulation stops, carrying the elapsed
// foreground duration folded into the running total.
type AccrualStopped struct {
	BaseEvent
	ElapsedMS int64 `json:"elapsed_ms"`
	TotalMS   int64 `json:"total_ms"`
}

// NewAccrualStopped creates an AccrualStopped event.
func NewAccrualStopped(sessionID string, elapsed time.Duration, totalMS int64, at time.Time) (*AccrualStopped, error) {
	payload, err := marshalPayload(TypeAccrualStopped, sessionID, map[string]any{
		"elapsed_ms": elapsed.Milliseconds(),
		"total_ms":   totalMS,
	})
	if err != nil {
		return nil, err
	}
	return &AccrualStopped{
		BaseEvent: newBase(sessionID, TypeAccrualStopped, at, payload),
		ElapsedMS: elapsed.Milliseconds(),
		TotalMS:   totalMS,
	}, nil
}

// SyncDelivered is emitted when the backend accepted a duration report.
type SyncDelivered struct {
	BaseEvent
	Endpoint string `json:"endpoint"`
	Seconds  int64  `json:"seconds"`
}

// NewSyncDelivered creates a SyncDelivered event.
func NewSyncDelivered(sessionID, endpoint string, seconds int64, at time.Time) (*SyncDelivered, error) {
	payload, err := marshalPayload(TypeSyncDelivered, sessionID, map[string]any{
		"endpoint": endpoint,
		"seconds":  seconds,
	})
	if err != nil {
		return nil, err
	}
	return &SyncDelivered{
		BaseEvent: newBase(sessionID, TypeSyncDelivered, at, payload),
		Endpoint:  endpoint,
		Seconds:   seconds,
	}, nil
}

// SyncFailed is emitted when a duration report could not be delivered. The
// duration stays persisted for the next attempt.
type SyncFailed struct {
	BaseEvent
	Endpoint string `json:"endpoint"`
	Seconds  int64  `json:"seconds"`
	Error    string `json:"error"`
}

// NewSyncFailed creates a SyncFailed event.
func NewSyncFailed(sessionID, endpoint string, seconds int64, errMsg string, at time.Time) (*SyncFailed, error) {
	payload, err := marshalPayload(TypeSyncFailed, sessionID, map[string]any{
		"endpoint": endpoint,
		"seconds":  seconds,
		"error":    errMsg,
	})
	if err != nil {
		return nil, err
	}
	return &SyncFailed{
		BaseEvent: newBase(sessionID, TypeSyncFailed, at, payload),
		Endpoint:  endpoint,
		Seconds:   seconds,
		Error:     errMsg,
	}, nil
}

// SyncDiscarded is emitted when a persisted duration fell below the minimum
// reportable threshold and was dropped.
type SyncDiscarded struct {
	BaseEvent
	DurationMS int64 `json:"duration_ms"`
}

// NewSyncDiscarded creates a SyncDiscarded event.
func NewSyncDiscarded(sessionID string, durationMS int64, at time.Time) (*SyncDiscarded, error) {
	payload, err := marshalPayload(TypeSyncDiscarded, sessionID, map[string]any{
		"duration_ms": durationMS,
	})
	if err != nil {
		return nil, err
	}
	return &SyncDiscarded{
		BaseEvent:  newBase(sessionID, TypeSyncDiscarded, at, payload),
		DurationMS: durationMS,
	}, nil
}

// TrackerReset is emitted when an authentication change forces a reconcile
// and restart of the accumulator.
type TrackerReset struct {
	BaseEvent
	Reason string `json:"reason"`
}

// NewTrackerReset creates a TrackerReset event.
func NewTrackerReset(sessionID, reason string, at time.Time) (*TrackerReset, error) {
	payload, err := marshalPayload(TypeTrackerReset, sessionID, map[string]any{
		"reason": reason,
	})
	if err != nil {
		return nil, err
	}
	return &TrackerReset{
		BaseEvent: newBase(sessionID, TypeTrackerReset, at, payload),
		Reason:    reason,
	}, nil
}

func newBase(sessionID, eventType string, at time.Time, payload []byte) BaseEvent {
	return BaseEvent{
		EventSessionID: sessionID,
		EventType:      eventType,
		EventTimestamp: at,
		EventPayload:   payload,
	}
}

func marshalPayload(eventType, sessionID string, fields map[string]any) ([]byte, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryEventStore, "failed to marshal "+eventType+" payload").
			Warning().
			WithContext("session_id", sessionID).
			Build()
	}
	return payload, nil
}
