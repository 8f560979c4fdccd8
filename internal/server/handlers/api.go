package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/timetracker/internal/auth"
	"git.home.luguber.info/inful/timetracker/internal/eventstore"
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
	"git.home.luguber.info/inful/timetracker/internal/server/responses"
	"git.home.luguber.info/inful/timetracker/internal/tracker"
)

// TrackerAPI is the tracker surface the API needs.
type TrackerAPI interface {
	Status() tracker.Status
	Persisted(ctx context.Context) (int64, error)
	Reset(ctx context.Context) (tracker.SyncResult, error)
	Accruing() bool
}

// HistoryAPI exposes the delivery projection. It may be nil when the event
// journal is disabled.
type HistoryAPI interface {
	GetHistory() []eventstore.DeliveryRecord
	GetTotals() eventstore.Totals
	LastSyncTime() time.Time
}

// UserAPI reports the signed-in user.
type UserAPI interface {
	CurrentUser() (auth.User, bool)
}

// APIHandlers serves tracker state and reconciliation.
type APIHandlers struct {
	tracker      TrackerAPI
	history      HistoryAPI
	users        UserAPI
	clock        clockwork.Clock
	errorAdapter *errors.HTTPErrorAdapter
}

// NewAPIHandlers creates tracker API handlers. history and users may be nil.
func NewAPIHandlers(t TrackerAPI, history HistoryAPI, users UserAPI, clock clockwork.Clock) *APIHandlers {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &APIHandlers{
		tracker:      t,
		history:      history,
		users:        users,
		clock:        clock,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleStatus handles GET /api/status.
func (h *APIHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := h.tracker.Status()
	persisted, err := h.tracker.Persisted(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.WrapError(err, errors.CategoryStorage, "failed to read persisted duration").Build())
		return
	}

	resp := &responses.StatusResponse{
		SessionID:     st.SessionID,
		Started:       st.Started,
		Visible:       st.Visible,
		Accruing:      st.Accruing,
		AccumulatedMS: st.AccumulatedMS,
		PendingMS:     st.PendingMS,
		PersistedMS:   persisted,
		LoggedIn:      st.LoggedIn,
		Timestamp:     h.clock.Now().UTC(),
	}
	if h.users != nil {
		if u, ok := h.users.CurrentUser(); ok {
			resp.User = &u
		}
	}
	if h.history != nil {
		if last := h.history.LastSyncTime(); !last.IsZero() {
			resp.LastSync = &last
		}
	}
	respond(h.errorAdapter, w, r, http.StatusOK, resp)
}

// HandleHistory handles GET /api/history.
func (h *APIHandlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.NotFoundError("event journal is disabled").Build())
		return
	}
	resp := &responses.HistoryResponse{
		Totals:     h.history.GetTotals(),
		Deliveries: h.history.GetHistory(),
	}
	if resp.Deliveries == nil {
		resp.Deliveries = []eventstore.DeliveryRecord{}
	}
	respond(h.errorAdapter, w, r, http.StatusOK, resp)
}

// HandleRefresh handles POST /api/refresh: stop, reconcile, restart.
func (h *APIHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.tracker.Reset(r.Context())
	if err != nil {
		slog.Warn("Refresh reconciliation failed", logfields.Outcome(string(res.Outcome)), logfields.Error(err))
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(h.errorAdapter, w, r, http.StatusOK, &responses.RefreshResponse{
		Outcome:    string(res.Outcome),
		Endpoint:   string(res.Endpoint),
		Seconds:    res.Seconds,
		DurationMS: res.DurationMS,
		Accruing:   h.tracker.Accruing(),
	})
}
