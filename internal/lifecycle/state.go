// Package lifecycle turns foreground/background notifications from some
// outside source into calls on a Handler.
package lifecycle

import (
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/foundation/normalization"
)

// State is a visibility state reported by a source.
type State string

const (
	StateVisible  State = "visible"
	StateHidden   State = "hidden"
	StatePageHide State = "pagehide"
)

var stateNormalizer = normalization.NewNormalizer(map[string]State{
	"visible":    StateVisible,
	"foreground": StateVisible,
	"hidden":     StateHidden,
	"background": StateHidden,
	"pagehide":   StatePageHide,
}, StateVisible)

// ParseState accepts a state name (case-insensitive). "foreground" and
// "background" are accepted as aliases.
func ParseState(raw string) (State, error) {
	if raw == "" {
		return "", errors.ValidationError("empty lifecycle state").Build()
	}
	s, err := stateNormalizer.NormalizeWithError(raw)
	if err != nil {
		return "", errors.ValidationError("unknown lifecycle state").
			WithCause(err).
			WithContext("state", raw).
			Build()
	}
	return s, nil
}

// IsVisible reports whether s means the app is in the foreground.
func (s State) IsVisible() bool { return s == StateVisible }

// ValidStates lists accepted state names.
func ValidStates() []string { return stateNormalizer.ValidKeys() }
