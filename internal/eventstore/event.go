package eventstore

import "time"

// Event types recorded by the tracker.
const (
	TypeAccrualStarted = "AccrualStarted"
	TypeAccrualStopped = "AccrualStopped"
	TypeSyncDelivered  = "SyncDelivered"
	TypeSyncFailed     = "SyncFailed"
	TypeSyncDiscarded  = "SyncDiscarded"
	TypeTrackerReset   = "TrackerReset"
)

// Event represents a domain event in the tracker's life.
type Event interface {
	// ID returns the unique identifier for this event (zero until stored).
	ID() int64
	// SessionID returns the tracker session this event belongs to.
	SessionID() string
	// Type returns the event type name.
	Type() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
	// Payload returns the event data as JSON bytes.
	Payload() []byte
	// Metadata returns optional event metadata.
	Metadata() map[string]string
}

// BaseEvent provides a default implementation of Event.
type BaseEvent struct {
	EventID        int64
	EventSessionID string
	EventType      string
	EventTimestamp time.Time
	EventPayload   []byte
	EventMetadata  map[string]string
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) SessionID() string           { return e.EventSessionID }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }
