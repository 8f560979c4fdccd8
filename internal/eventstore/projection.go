package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Outcomes recorded in DeliveryRecord.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// DeliveryRecord is a read model entry for one reconciliation attempt that
// reached a decision (delivered, failed, or discarded).
type DeliveryRecord struct {
	EventID    int64     `json:"event_id,omitempty"`
	SessionID  string    `json:"session_id"`
	Outcome    string    `json:"outcome"`
	Endpoint   string    `json:"endpoint,omitempty"`
	Seconds    int64     `json:"seconds,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Totals aggregates everything the projection has seen.
type Totals struct {
	DeliveredSeconds int64 `json:"delivered_seconds"`
	Delivered        int   `json:"delivered"`
	Failed           int   `json:"failed"`
	Discarded        int   `json:"discarded"`
	ForegroundMS     int64 `json:"foreground_ms"`
	Resets           int   `json:"resets"`
	Sessions         int   `json:"sessions"`
}

// DeliveryHistoryProjection maintains an in-memory view of delivery history,
// reconstructed from events stored in the event store.
type DeliveryHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	history  []DeliveryRecord // newest first
	totals   Totals
	sessions map[string]struct{}
	maxSize  int
	lastSync time.Time
}

// NewDeliveryHistoryProjection creates a new projection backed by the given store.
func NewDeliveryHistoryProjection(store Store, maxHistorySize int) *DeliveryHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &DeliveryHistoryProjection{
		store:    store,
		history:  make([]DeliveryRecord, 0, maxHistorySize),
		sessions: make(map[string]struct{}),
		maxSize:  maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
// This is typically called at startup.
func (p *DeliveryHistoryProjection) Rebuild(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	events, err := p.store.GetRange(ctx, time.Unix(0, 0), time.Now().Add(24*time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = make([]DeliveryRecord, 0, p.maxSize)
	p.totals = Totals{}
	p.sessions = make(map[string]struct{})

	for _, event := range events {
		p.applyEventLocked(event)
	}

	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].At.After(p.history[j].At)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *DeliveryHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *DeliveryHistoryProjection) applyEventLocked(event Event) {
	if sid := event.SessionID(); sid != "" {
		if _, seen := p.sessions[sid]; !seen {
			p.sessions[sid] = struct{}{}
			p.totals.Sessions++
		}
	}

	rec := DeliveryRecord{EventID: event.ID(), SessionID: event.SessionID(), At: event.Timestamp()}

	switch event.Type() {
	case TypeAccrualStopped:
		var payload struct {
			ElapsedMS int64 `json:"elapsed_ms"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			p.totals.ForegroundMS += payload.ElapsedMS
		}
		return

	case TypeTrackerReset:
		p.totals.Resets++
		return

	case TypeSyncDelivered:
		var payload struct {
			Endpoint string `json:"endpoint"`
			Seconds  int64  `json:"seconds"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err != nil {
			return
		}
		rec.Outcome = OutcomeDelivered
		rec.Endpoint = payload.Endpoint
		rec.Seconds = payload.Seconds
		p.totals.Delivered++
		p.totals.DeliveredSeconds += payload.Seconds

	case TypeSyncFailed:
		var payload struct {
			Endpoint string `json:"endpoint"`
			Seconds  int64  `json:"seconds"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err != nil {
			return
		}
		rec.Outcome = OutcomeFailed
		rec.Endpoint = payload.Endpoint
		rec.Seconds = payload.Seconds
		rec.Error = payload.Error
		p.totals.Failed++

	case TypeSyncDiscarded:
		var payload struct {
			DurationMS int64 `json:"duration_ms"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err != nil {
			return
		}
		rec.Outcome = OutcomeDiscarded
		rec.DurationMS = payload.DurationMS
		p.totals.Discarded++

	default:
		return
	}

	p.history = append([]DeliveryRecord{rec}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
}

// GetHistory returns the delivery history, newest first.
func (p *DeliveryHistoryProjection) GetHistory() []DeliveryRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]DeliveryRecord, len(p.history))
	copy(result, p.history)
	return result
}

// GetLastDelivery returns the most recent successful delivery, if any.
func (p *DeliveryHistoryProjection) GetLastDelivery() (DeliveryRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, rec := range p.history {
		if rec.Outcome == OutcomeDelivered {
			return rec, true
		}
	}
	return DeliveryRecord{}, false
}

// GetTotals returns aggregate counters.
func (p *DeliveryHistoryProjection) GetTotals() Totals {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totals
}

// LastSyncTime returns when the projection was last rebuilt from the store.
func (p *DeliveryHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
