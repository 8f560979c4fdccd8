package tracker

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/timetracker/internal/eventstore"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
)

// OnForeground begins accrual. It is a no-op when already accruing, before
// Start, during reconciliation and after Close; visibility is still recorded
// so accrual resumes once the tracker can accrue.
func (t *Tracker) OnForeground() {
	t.mu.Lock()
	t.visible = true
	var pending []eventstore.Event
	if t.started && !t.reconciling && !t.closed {
		pending = t.startAccrualLocked(eventstore.TriggerForeground)
	}
	t.mu.Unlock()

	t.emit(context.Background(), pending...)
}

// OnBackground stops accrual and persists the running total immediately.
func (t *Tracker) OnBackground() {
	t.mu.Lock()
	t.visible = false
	pending, err := t.stopAccrualLocked(context.Background())
	t.mu.Unlock()

	if err != nil {
		slog.Warn("Failed to persist accumulated time", logfields.StorageKey(t.key), logfields.Error(err))
	}
	t.emit(context.Background(), pending...)
}

// Flush writes the running total to storage.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked(ctx)
}

func (t *Tracker) startAccrualLocked(trigger string) []eventstore.Event {
	if t.accruing {
		return nil
	}
	now := t.clock.Now()
	t.accruing = true
	t.startedAt = now
	t.sessionID = uuid.NewString()
	t.flushDone = make(chan struct{})
	t.recorder.SetAccruing(true)

	ticker := t.clock.NewTicker(t.interval)
	t.wg.Add(1)
	go t.flushLoop(ticker, t.flushDone)

	slog.Debug("Accrual started", logfields.SessionID(t.sessionID), slog.String("trigger", trigger))

	e, err := eventstore.NewAccrualStarted(t.sessionID, trigger, now)
	if err != nil {
		return nil
	}
	return []eventstore.Event{e}
}

// stopAccrualLocked folds the in-flight period into the accumulator and
// persists the total. The flush goroutine is signalled but not awaited; it
// needs mu to observe the signal.
func (t *Tracker) stopAccrualLocked(ctx context.Context) ([]eventstore.Event, error) {
	if !t.accruing {
		return nil, nil
	}
	now := t.clock.Now()
	elapsed := now.Sub(t.startedAt)
	t.accumulated += elapsed.Milliseconds()
	t.accruing = false
	close(t.flushDone)
	t.flushDone = nil
	t.recorder.SetAccruing(false)
	t.recorder.ObserveSessionDuration(elapsed)

	err := t.flushLocked(ctx)

	slog.Debug("Accrual stopped",
		logfields.SessionID(t.sessionID),
		logfields.Duration(elapsed),
		logfields.DurationMS(t.accumulated))

	e, eerr := eventstore.NewAccrualStopped(t.sessionID, elapsed, t.accumulated, now)
	if eerr != nil {
		return nil, err
	}
	return []eventstore.Event{e}, err
}

func (t *Tracker) flushLoop(ticker clockwork.Ticker, done <-chan struct{}) {
	defer t.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			t.flushTick(done)
		}
	}
}

// flushTick flushes unless the accrual period that owns done has ended. The
// check runs under mu so a tick racing with stop never writes a stale total.
func (t *Tracker) flushTick(done <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-done:
		return
	default:
	}
	if err := t.flushLocked(context.Background()); err != nil {
		slog.Warn("Periodic flush failed", logfields.StorageKey(t.key), logfields.Error(err))
	}
}

func (t *Tracker) flushLocked(ctx context.Context) error {
	total := t.carried + t.accumulatedLocked()
	err := t.store.Set(ctx, t.key, strconv.FormatInt(total, 10))
	t.recorder.IncFlush(err == nil)
	if err == nil {
		t.recorder.SetPendingMilliseconds(total)
	}
	return err
}

// finishReconcileLocked ends a reconciliation window and resumes accrual when
// the last reported visibility allows it.
func (t *Tracker) finishReconcileLocked(trigger string) []eventstore.Event {
	t.reconciling = false
	if t.closed || !t.started || !t.visible {
		return nil
	}
	return t.startAccrualLocked(trigger)
}

// emit forwards events to the sink outside of mu. Journal failures never
// affect tracking.
func (t *Tracker) emit(ctx context.Context, events ...eventstore.Event) {
	if t.events == nil {
		return
	}
	for _, e := range events {
		if err := t.events.Emit(ctx, e); err != nil {
			slog.Warn("Failed to record tracker event",
				slog.String("event_type", e.Type()),
				logfields.SessionID(e.SessionID()),
				logfields.Error(err))
		}
	}
}

// parseMillis parses a stored duration. Negative or malformed values are
// rejected; fractional values are rounded.
func parseMillis(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, ms >= 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64/2 {
		return 0, false
	}
	return int64(f + 0.5), true
}
