package handlers

import (
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/lifecycle"
	"git.home.luguber.info/inful/timetracker/internal/server/responses"
)

// SourceHTTP labels transitions that arrive through the API.
const SourceHTTP = "http"

// LifecycleAPI accepts visibility transitions.
type LifecycleAPI interface {
	Dispatch(source string, state lifecycle.State)
	Current() lifecycle.State
}

// LifecycleHandlers feeds manual transitions into the dispatcher.
type LifecycleHandlers struct {
	dispatcher   LifecycleAPI
	tracker      interface{ Accruing() bool }
	errorAdapter *errors.HTTPErrorAdapter
}

func NewLifecycleHandlers(d LifecycleAPI, t interface{ Accruing() bool }) *LifecycleHandlers {
	return &LifecycleHandlers{
		dispatcher:   d,
		tracker:      t,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleLifecycle handles POST /api/lifecycle.
func (h *LifecycleHandlers) HandleLifecycle(w http.ResponseWriter, r *http.Request) {
	var req responses.LifecycleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	state, err := lifecycle.ParseState(req.State)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	h.dispatcher.Dispatch(SourceHTTP, state)

	respond(h.errorAdapter, w, r, http.StatusOK, &responses.LifecycleResponse{
		State:    string(h.dispatcher.Current()),
		Accruing: h.tracker.Accruing(),
	})
}
