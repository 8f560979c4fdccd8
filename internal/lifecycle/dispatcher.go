package lifecycle

import (
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/timetracker/internal/logfields"
	"git.home.luguber.info/inful/timetracker/internal/metrics"
)

// Handler receives visibility transitions.
type Handler interface {
	OnForeground()
	OnBackground()
}

// Dispatcher forwards states to a Handler and remembers the latest one.
type Dispatcher struct {
	handler  Handler
	recorder metrics.Recorder

	mu      sync.Mutex
	current State
}

// NewDispatcher creates a Dispatcher whose current state starts at initial.
func NewDispatcher(h Handler, recorder metrics.Recorder, initial State) *Dispatcher {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if initial == "" {
		initial = StateVisible
	}
	return &Dispatcher{handler: h, recorder: recorder, current: initial}
}

// Dispatch delivers state to the handler. Calls are serialised so the
// handler observes states in the order they were dispatched.
func (d *Dispatcher) Dispatch(source string, state State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.current = state
	d.recorder.IncLifecycleEvent(string(state))
	slog.Debug("Lifecycle transition",
		logfields.Source(source),
		logfields.LifecycleState(string(state)))

	if state.IsVisible() {
		d.handler.OnForeground()
		return
	}
	d.handler.OnBackground()
}

// Current returns the most recently dispatched state.
func (d *Dispatcher) Current() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}
