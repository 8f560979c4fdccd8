package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/timetracker/internal/eventstore"
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/metrics"
	"git.home.luguber.info/inful/timetracker/internal/storage"
)

// Defaults.
const (
	DefaultStorageKey      = "unsentTimeSpent"
	DefaultFlushInterval   = time.Second
	DefaultMinSyncDuration = 3 * time.Second
)

// AuthState reports whether a user is signed in.
type AuthState interface {
	IsLoggedIn() bool
}

// Deliverer sends usage reports to the backend.
type Deliverer interface {
	LogUserTimeSpent(ctx context.Context, seconds int64) error
	LogVisitorTimeSpent(ctx context.Context, seconds int64) error
}

// EventSink receives tracker events. *eventstore.Emitter satisfies it.
type EventSink interface {
	Emit(ctx context.Context, event eventstore.Event) error
}

// Options configures a Tracker. Store, Auth and Deliverer are required.
type Options struct {
	Store     storage.Store
	Auth      AuthState
	Deliverer Deliverer

	Clock    clockwork.Clock
	Recorder metrics.Recorder
	Events   EventSink

	StorageKey      string
	FlushInterval   time.Duration
	MinSyncDuration time.Duration
}

// Tracker accumulates foreground time. All state transitions are serialised
// by mu; reconciliations are additionally serialised by reconcileMu so the
// network call can run without holding mu.
type Tracker struct {
	store     storage.Store
	auth      AuthState
	deliverer Deliverer
	clock     clockwork.Clock
	recorder  metrics.Recorder
	events    EventSink
	key       string
	interval  time.Duration
	minSync   time.Duration

	reconcileMu sync.Mutex

	mu          sync.Mutex
	sessionID   string
	accumulated int64 // ms folded in from finished accrual periods
	carried     int64 // ms left over from a failed reconciliation
	accruing    bool
	startedAt   time.Time
	visible     bool
	started     bool
	reconciling bool
	closed      bool
	flushDone   chan struct{}
	wg          sync.WaitGroup
}

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.ValidationError("tracker already started").Build()

	// ErrClosed is returned by operations on a closed Tracker.
	ErrClosed = errors.ValidationError("tracker is closed").Build()

	// ErrAccruing is returned by Sync while foreground time is being accumulated;
	// use Reset to stop, reconcile and restart in one step.
	ErrAccruing = errors.ValidationError("cannot sync while accruing").Build()
)

// New creates an idle Tracker.
func New(opts Options) (*Tracker, error) {
	if opts.Store == nil || opts.Auth == nil || opts.Deliverer == nil {
		return nil, errors.ConfigError("tracker requires a store, auth state and deliverer").Build()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.StorageKey == "" {
		opts.StorageKey = DefaultStorageKey
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.MinSyncDuration <= 0 {
		opts.MinSyncDuration = DefaultMinSyncDuration
	}
	if err := storage.ValidateKey(opts.StorageKey); err != nil {
		return nil, err
	}

	return &Tracker{
		store:      opts.Store,
		auth:       opts.Auth,
		deliverer:  opts.Deliverer,
		clock:      opts.Clock,
		recorder:   opts.Recorder,
		events:     opts.Events,
		key:        opts.StorageKey,
		interval:   opts.FlushInterval,
		minSync:    opts.MinSyncDuration,
		sessionID:  uuid.NewString(),
	}, nil
}

// Start reconciles any duration left by a previous run, zeroes the
// accumulator and begins accruing if visible. The tracker starts even when
// reconciliation fails; the error is returned for the caller to log.
func (t *Tracker) Start(ctx context.Context, visible bool) (SyncResult, error) {
	t.reconcileMu.Lock()
	defer t.reconcileMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return SyncResult{}, ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return SyncResult{}, ErrAlreadyStarted
	}
	t.visible = visible
	t.reconciling = true
	t.mu.Unlock()

	res, err := t.reconcile(ctx)

	t.mu.Lock()
	t.started = true
	t.accumulated = 0
	pending := t.finishReconcileLocked(eventstore.TriggerStart)
	t.mu.Unlock()

	t.emit(ctx, pending...)
	return res, err
}

// Close stops accrual, persists the running total and waits for the flush
// loop to exit.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	pending, err := t.stopAccrualLocked(ctx)
	t.closed = true
	t.mu.Unlock()

	t.emit(ctx, pending...)
	t.wg.Wait()
	return err
}

// Status is a point-in-time snapshot of the tracker.
type Status struct {
	SessionID     string `json:"session_id"`
	Started       bool   `json:"started"`
	Visible       bool   `json:"visible"`
	Accruing      bool   `json:"accruing"`
	AccumulatedMS int64  `json:"accumulated_ms"`
	PendingMS     int64  `json:"pending_ms"`
	LoggedIn      bool   `json:"logged_in"`
}

// Status returns a snapshot of the tracker state.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	acc := t.accumulatedLocked()
	return Status{
		SessionID:     t.sessionID,
		Started:       t.started,
		Visible:       t.visible,
		Accruing:      t.accruing,
		AccumulatedMS: acc,
		PendingMS:     t.carried + acc,
		LoggedIn:      t.auth.IsLoggedIn(),
	}
}

// Accumulated returns the foreground time of the current session in ms,
// including the in-flight accrual period.
func (t *Tracker) Accumulated() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accumulatedLocked()
}

// Accruing reports whether foreground time is currently being accumulated.
func (t *Tracker) Accruing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accruing
}

// Visible reports the last known visibility.
func (t *Tracker) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// Persisted reads the duration currently stored in the slot, in ms.
func (t *Tracker) Persisted(ctx context.Context) (int64, error) {
	raw, err := t.store.Get(ctx, t.key)
	if err != nil {
		if storage.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	ms, ok := parseMillis(raw)
	if !ok {
		return 0, errors.StorageError("persisted duration is not a number").
			WithContext("key", t.key).
			WithContext("value", raw).
			Build()
	}
	return ms, nil
}

func (t *Tracker) accumulatedLocked() int64 {
	acc := t.accumulated
	if t.accruing {
		acc += t.clock.Since(t.startedAt).Milliseconds()
	}
	return acc
}
