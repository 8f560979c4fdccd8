// Package guest rate-limits actions that signed-out visitors may perform.
package guest

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/foundation/normalization"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
	"git.home.luguber.info/inful/timetracker/internal/storage"
)

// Action is a guest-limited operation.
type Action string

const (
	ActionPlace Action = "place"
	ActionOpen  Action = "open"
)

// DefaultWindow is how long a guest waits between two uses of an action.
const DefaultWindow = 24 * time.Hour

var actionNormalizer = normalization.NewNormalizer(map[string]Action{
	"place": ActionPlace,
	"open":  ActionOpen,
}, "")

// ParseAction validates an action name.
func ParseAction(raw string) (Action, error) {
	a := actionNormalizer.Normalize(raw)
	if a == "" {
		return "", errors.ValidationError("unknown guest action").
			WithContext("action", raw).
			WithContext("valid", actionNormalizer.ValidKeys()).
			Build()
	}
	return a, nil
}

// Key returns the storage slot for action, e.g. "guestLastPlaceTime".
func Key(a Action) string {
	s := string(a)
	if s == "" {
		return "guestLastTime"
	}
	return "guestLast" + strings.ToUpper(s[:1]) + s[1:] + "Time"
}

// Limiter allows each action once per window, remembering the last use as a
// millisecond Unix timestamp.
type Limiter struct {
	mu     sync.Mutex
	store  storage.Store
	clock  clockwork.Clock
	window time.Duration
}

// NewLimiter creates a Limiter. A nil clock uses real time; a non-positive
// window uses DefaultWindow.
func NewLimiter(store storage.Store, clock clockwork.Clock, window time.Duration) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: store, clock: clock, window: window}
}

// CanPerform reports whether a guest may perform a now.
func (l *Limiter) CanPerform(ctx context.Context, a Action) (bool, error) {
	wait, err := l.Remaining(ctx, a)
	if err != nil {
		return false, err
	}
	return wait == 0, nil
}

// Remaining returns how long until a is allowed again; zero means now.
func (l *Limiter) Remaining(ctx context.Context, a Action) (time.Duration, error) {
	last, ok, err := l.lastUse(ctx, a)
	if err != nil || !ok {
		return 0, err
	}
	elapsed := l.clock.Now().Sub(last)
	if elapsed > l.window {
		return 0, nil
	}
	// At exactly the window boundary the action is still blocked.
	return max(l.window-elapsed, time.Millisecond), nil
}

// Record stores now as the last use of a.
func (l *Limiter) Record(ctx context.Context, a Action) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(ctx, a)
}

// TryRecord records a if it is allowed now and otherwise returns the
// remaining wait. The check and the write happen under one lock, so of
// several concurrent callers only one is allowed per window.
func (l *Limiter) TryRecord(ctx context.Context, a Action) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wait, err := l.Remaining(ctx, a)
	if err != nil {
		return false, 0, err
	}
	if wait > 0 {
		return false, wait, nil
	}
	if err := l.record(ctx, a); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}

func (l *Limiter) record(ctx context.Context, a Action) error {
	now := l.clock.Now().UnixMilli()
	return l.store.Set(ctx, Key(a), strconv.FormatInt(now, 10))
}

func (l *Limiter) lastUse(ctx context.Context, a Action) (time.Time, bool, error) {
	raw, err := l.store.Get(ctx, Key(a))
	if err != nil {
		if storage.IsNotFound(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		slog.Debug("Ignoring malformed guest timestamp", logfields.StorageKey(Key(a)), logfields.Error(err))
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}
