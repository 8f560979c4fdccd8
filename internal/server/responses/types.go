// Package responses defines request and response bodies of the agent HTTP API.
package responses

import (
	"time"

	"git.home.luguber.info/inful/timetracker/internal/auth"
	"git.home.luguber.info/inful/timetracker/internal/eventstore"
)

// HealthResponse represents the health check API response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime"`
}

// StatusResponse is the tracker snapshot served by GET /api/status.
type StatusResponse struct {
	SessionID     string     `json:"session_id,omitempty"`
	Started       bool       `json:"started"`
	Visible       bool       `json:"visible"`
	Accruing      bool       `json:"accruing"`
	AccumulatedMS int64      `json:"accumulated_ms"`
	PendingMS     int64      `json:"pending_ms"`
	PersistedMS   int64      `json:"persisted_ms"`
	LoggedIn      bool       `json:"logged_in"`
	User          *auth.User `json:"user,omitempty"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// HistoryResponse is the delivery projection served by GET /api/history.
type HistoryResponse struct {
	Totals     eventstore.Totals           `json:"totals"`
	Deliveries []eventstore.DeliveryRecord `json:"deliveries"`
}

// LifecycleRequest is the body of POST /api/lifecycle.
type LifecycleRequest struct {
	State string `json:"state"`
}

// LifecycleResponse reports the state after a manual transition.
type LifecycleResponse struct {
	State    string `json:"state"`
	Accruing bool   `json:"accruing"`
}

// RefreshResponse reports the reconciliation run by POST /api/refresh.
type RefreshResponse struct {
	Outcome    string `json:"outcome"`
	Endpoint   string `json:"endpoint,omitempty"`
	Seconds    int64  `json:"seconds"`
	DurationMS int64  `json:"duration_ms"`
	Accruing   bool   `json:"accruing"`
}

// SessionRequest is the body of PUT /api/session.
type SessionRequest struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

// SessionResponse reports the credential state.
type SessionResponse struct {
	LoggedIn bool       `json:"logged_in"`
	User     *auth.User `json:"user,omitempty"`
}

// GuestResponse reports whether a guest may perform an action.
type GuestResponse struct {
	Action      string `json:"action"`
	Allowed     bool   `json:"allowed"`
	RemainingMS int64  `json:"remaining_ms"`
}
