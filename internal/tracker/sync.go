package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/timetracker/internal/eventstore"
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
	"git.home.luguber.info/inful/timetracker/internal/metrics"
	"git.home.luguber.info/inful/timetracker/internal/storage"
)

// Endpoint names the backend route a duration was reported to.
type Endpoint string

const (
	EndpointUser    Endpoint = "user"
	EndpointVisitor Endpoint = "visitor"
)

// Outcome classifies a reconciliation attempt.
type Outcome string

const (
	// OutcomeEmpty means nothing was stored.
	OutcomeEmpty Outcome = "empty"
	// OutcomeDiscarded means the stored duration was below the threshold and was dropped.
	OutcomeDiscarded Outcome = "discarded"
	// OutcomeDelivered means the backend accepted the report and the slot was cleared.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeFailed means delivery failed and the duration is kept.
	OutcomeFailed Outcome = "failed"
)

// SyncResult describes what a reconciliation did.
type SyncResult struct {
	Outcome    Outcome  `json:"outcome"`
	Endpoint   Endpoint `json:"endpoint,omitempty"`
	Seconds    int64    `json:"seconds"`
	DurationMS int64    `json:"duration_ms"`
}

// DeliveryError is returned when the backend did not accept a report.
type DeliveryError struct {
	Endpoint Endpoint
	Seconds  int64
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %ds to %s endpoint: %v", e.Seconds, e.Endpoint, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Sync reconciles the persisted duration once. It refuses to run while
// accruing because the running total would be reported twice.
func (t *Tracker) Sync(ctx context.Context) (SyncResult, error) {
	t.reconcileMu.Lock()
	defer t.reconcileMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return SyncResult{}, ErrClosed
	}
	if t.accruing {
		t.mu.Unlock()
		return SyncResult{}, ErrAccruing
	}
	t.reconciling = true
	t.mu.Unlock()

	res, err := t.reconcile(ctx)

	t.mu.Lock()
	pending := t.finishReconcileLocked(eventstore.TriggerForeground)
	t.mu.Unlock()

	t.emit(ctx, pending...)
	return res, err
}

// Reset stops accrual, reconciles immediately, zeroes the accumulator and
// restarts accrual right away when visible. Visibility changes that arrive
// during the reconciliation are honoured when it completes.
func (t *Tracker) Reset(ctx context.Context) (SyncResult, error) {
	t.reconcileMu.Lock()
	defer t.reconcileMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return SyncResult{}, ErrClosed
	}
	stopped, ferr := t.stopAccrualLocked(ctx)
	t.reconciling = true
	sessionID := t.sessionID
	now := t.clock.Now()
	t.mu.Unlock()

	if ferr != nil {
		slog.Warn("Failed to persist accumulated time before reset", logfields.StorageKey(t.key), logfields.Error(ferr))
	}
	if e, err := eventstore.NewTrackerReset(sessionID, "refresh", now); err == nil {
		stopped = append(stopped, e)
	}
	t.emit(ctx, stopped...)

	res, err := t.reconcile(ctx)

	t.mu.Lock()
	t.accumulated = 0
	pending := t.finishReconcileLocked(eventstore.TriggerReset)
	t.mu.Unlock()

	t.emit(ctx, pending...)
	return res, err
}

// reconcile delivers the pending duration. Callers hold reconcileMu and have
// set reconciling, so no accrual can start while the request is in flight.
//
// The pending duration is the larger of the stored value and the in-memory
// total; the two only differ when a flush failed or on the first start.
func (t *Tracker) reconcile(ctx context.Context) (SyncResult, error) {
	t.mu.Lock()
	stored, present := t.readStoredLocked(ctx)
	total := max(stored, t.carried+t.accumulated)
	seconds := (total + 500) / 1000
	res := SyncResult{DurationMS: total, Seconds: seconds}
	sessionID := t.sessionID

	if !present && total == 0 {
		t.mu.Unlock()
		res.Outcome = OutcomeEmpty
		res.Seconds = 0
		t.recorder.IncSyncOutcome("", metrics.OutcomeEmpty)
		return res, nil
	}

	if seconds <= 0 || time.Duration(seconds)*time.Second < t.minSync {
		err := t.store.Remove(ctx, t.key)
		t.carried, t.accumulated = 0, 0
		t.recorder.SetPendingMilliseconds(0)
		now := t.clock.Now()
		t.mu.Unlock()

		if err != nil {
			slog.Warn("Failed to clear discarded duration", logfields.StorageKey(t.key), logfields.Error(err))
		}
		slog.Debug("Discarding duration below threshold", logfields.DurationMS(total))
		res.Outcome = OutcomeDiscarded
		t.recorder.IncSyncOutcome("", metrics.OutcomeDiscarded)
		if e, eerr := eventstore.NewSyncDiscarded(sessionID, total, now); eerr == nil {
			t.emit(ctx, e)
		}
		return res, nil
	}

	endpoint := EndpointVisitor
	if t.auth.IsLoggedIn() {
		endpoint = EndpointUser
	}
	res.Endpoint = endpoint
	t.mu.Unlock()

	derr := t.deliver(ctx, endpoint, seconds)

	t.mu.Lock()
	now := t.clock.Now()
	if derr != nil {
		// Keep everything that was pending; make sure the slot holds it.
		t.carried, t.accumulated = total, 0
		if stored != total {
			if err := t.flushLocked(ctx); err != nil {
				slog.Warn("Failed to persist undelivered duration", logfields.StorageKey(t.key), logfields.Error(err))
			}
		}
		t.mu.Unlock()

		res.Outcome = OutcomeFailed
		t.recorder.IncSyncOutcome(string(endpoint), metrics.OutcomeFailed)
		slog.Warn("Failed to deliver usage report; will retry on next start",
			logfields.Endpoint(string(endpoint)),
			logfields.DurationSeconds(seconds),
			logfields.Error(derr))
		if e, eerr := eventstore.NewSyncFailed(sessionID, string(endpoint), seconds, derr.Error(), now); eerr == nil {
			t.emit(ctx, e)
		}
		return res, &DeliveryError{
			Endpoint: endpoint,
			Seconds:  seconds,
			Err: errors.WrapError(derr, errors.CategoryDelivery, "usage report not accepted").
				RetryLater().
				WithContext("endpoint", string(endpoint)).
				WithContext("seconds", seconds).
				Build(),
		}
	}

	rerr := t.store.Remove(ctx, t.key)
	t.carried, t.accumulated = 0, 0
	t.recorder.SetPendingMilliseconds(0)
	t.mu.Unlock()

	if rerr != nil {
		slog.Error("Delivered usage report but failed to clear storage", logfields.StorageKey(t.key), logfields.Error(rerr))
	}
	res.Outcome = OutcomeDelivered
	t.recorder.IncSyncOutcome(string(endpoint), metrics.OutcomeDelivered)
	t.recorder.AddDeliveredSeconds(string(endpoint), seconds)
	slog.Info("Delivered usage report",
		logfields.Endpoint(string(endpoint)),
		logfields.DurationSeconds(seconds))
	if e, eerr := eventstore.NewSyncDelivered(sessionID, string(endpoint), seconds, now); eerr == nil {
		t.emit(ctx, e)
	}
	return res, nil
}

func (t *Tracker) deliver(ctx context.Context, endpoint Endpoint, seconds int64) error {
	if endpoint == EndpointUser {
		return t.deliverer.LogUserTimeSpent(ctx, seconds)
	}
	return t.deliverer.LogVisitorTimeSpent(ctx, seconds)
}

// readStoredLocked returns the stored duration. Read and parse failures
// count as zero; present reports whether the slot holds anything to clear.
func (t *Tracker) readStoredLocked(ctx context.Context) (ms int64, present bool) {
	raw, err := t.store.Get(ctx, t.key)
	if err != nil {
		if !storage.IsNotFound(err) {
			slog.Debug("Treating unreadable stored duration as zero", logfields.StorageKey(t.key), logfields.Error(err))
		}
		return 0, false
	}
	ms, ok := parseMillis(raw)
	if !ok {
		slog.Debug("Treating malformed stored duration as zero", logfields.StorageKey(t.key), slog.String("value", raw))
		return 0, true
	}
	return ms, true
}
