package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/guest"
	"git.home.luguber.info/inful/timetracker/internal/server/responses"
)

// GuestAPI rate limits guest actions.
type GuestAPI interface {
	Remaining(ctx context.Context, a guest.Action) (time.Duration, error)
	TryRecord(ctx context.Context, a guest.Action) (bool, time.Duration, error)
}

// GuestHandlers exposes the once-per-window guest limits.
type GuestHandlers struct {
	limiter      GuestAPI
	errorAdapter *errors.HTTPErrorAdapter
}

func NewGuestHandlers(l GuestAPI) *GuestHandlers {
	return &GuestHandlers{limiter: l, errorAdapter: errors.NewHTTPErrorAdapter(slog.Default())}
}

// HandleCheck handles GET /api/guest/{action}.
func (h *GuestHandlers) HandleCheck(w http.ResponseWriter, r *http.Request) {
	action, wait, err := h.lookup(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(h.errorAdapter, w, r, http.StatusOK, guestResponse(action, wait))
}

// HandleRecord handles POST /api/guest/{action}. A blocked action answers
// 429 with the remaining wait and is not recorded.
func (h *GuestHandlers) HandleRecord(w http.ResponseWriter, r *http.Request) {
	action, err := guest.ParseAction(r.PathValue("action"))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	allowed, wait, err := h.limiter.TryRecord(r.Context(), action)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.WrapError(err, errors.CategoryStorage, "failed to record guest action").Build())
		return
	}
	if !allowed {
		respond(h.errorAdapter, w, r, http.StatusTooManyRequests, guestResponse(action, wait))
		return
	}
	respond(h.errorAdapter, w, r, http.StatusOK, guestResponse(action, 0))
}

func (h *GuestHandlers) lookup(r *http.Request) (guest.Action, time.Duration, error) {
	action, err := guest.ParseAction(r.PathValue("action"))
	if err != nil {
		return "", 0, err
	}
	wait, err := h.limiter.Remaining(r.Context(), action)
	if err != nil {
		return "", 0, errors.WrapError(err, errors.CategoryStorage, "failed to read guest action").Build()
	}
	return action, wait, nil
}

func guestResponse(a guest.Action, wait time.Duration) *responses.GuestResponse {
	return &responses.GuestResponse{
		Action:      string(a),
		Allowed:     wait == 0,
		RemainingMS: wait.Milliseconds(),
	}
}
