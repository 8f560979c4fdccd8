package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/timetracker/internal/auth"
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/server/responses"
)

// SessionAPI manages the stored credential.
type SessionAPI interface {
	IsLoggedIn() bool
	CurrentUser() (auth.User, bool)
	Login(ctx context.Context, token string, user auth.User) error
	Logout(ctx context.Context) error
}

// SessionHandlers lets a companion UI hand the agent its credential.
type SessionHandlers struct {
	session      SessionAPI
	errorAdapter *errors.HTTPErrorAdapter
}

func NewSessionHandlers(s SessionAPI) *SessionHandlers {
	return &SessionHandlers{session: s, errorAdapter: errors.NewHTTPErrorAdapter(slog.Default())}
}

// HandleGet handles GET /api/session.
func (h *SessionHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	respond(h.errorAdapter, w, r, http.StatusOK, h.snapshot())
}

// HandlePut handles PUT /api/session.
func (h *SessionHandlers) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req responses.SessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		h.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("token is required").Build())
		return
	}
	if err := h.session.Login(r.Context(), req.Token, req.User); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(h.errorAdapter, w, r, http.StatusOK, h.snapshot())
}

// HandleDelete handles DELETE /api/session.
func (h *SessionHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(h.errorAdapter, w, r, http.StatusOK, h.snapshot())
}

func (h *SessionHandlers) snapshot() *responses.SessionResponse {
	resp := &responses.SessionResponse{LoggedIn: h.session.IsLoggedIn()}
	if u, ok := h.session.CurrentUser(); ok {
		resp.User = &u
	}
	return resp
}
