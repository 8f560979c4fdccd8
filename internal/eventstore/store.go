// Package eventstore journals accrual and reconciliation events so the daemon
// can report delivery history across restarts.
package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store. A zero event timestamp is
	// replaced with the store's current time.
	Append(ctx context.Context, event Event) error

	// GetBySessionID retrieves all events for one tracker session, oldest first.
	GetBySessionID(ctx context.Context, sessionID string) ([]Event, error)

	// GetRange retrieves events within a time range, oldest first.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// PruneBefore deletes events older than cutoff and reports how many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}
