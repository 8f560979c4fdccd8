// Package auth keeps the signed-in user's bearer token and profile in the
// local slot store.
package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
	"git.home.luguber.info/inful/timetracker/internal/storage"
)

// Default storage keys.
const (
	DefaultTokenKey = "authToken"
	DefaultUserKey  = "currentUser"
)

// User is the profile returned by the backend on login.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Session holds the current credential. It satisfies tracker.AuthState.
type Session struct {
	mu       sync.RWMutex
	store    storage.Store
	tokenKey string
	userKey  string
	token    string
	user     *User
}

// NewSession creates a logged-out session backed by store. Empty keys fall
// back to the defaults.
func NewSession(store storage.Store, tokenKey, userKey string) *Session {
	if tokenKey == "" {
		tokenKey = DefaultTokenKey
	}
	if userKey == "" {
		userKey = DefaultUserKey
	}
	return &Session{store: store, tokenKey: tokenKey, userKey: userKey}
}

// Load restores a previously stored credential. Both the token and the user
// profile must be present; anything else leaves the session logged out.
func (s *Session) Load(ctx context.Context) error {
	token, err := s.store.Get(ctx, s.tokenKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return err
	}
	rawUser, err := s.store.Get(ctx, s.userKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return err
	}

	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		slog.Debug("Ignoring unreadable stored user profile",
			logfields.StorageKey(s.userKey),
			logfields.Error(err))
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()
	return nil
}

// IsLoggedIn reports whether a bearer token is present.
func (s *Session) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CurrentUser returns the signed-in user's profile.
func (s *Session) CurrentUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Login stores token and user, replacing any previous credential.
func (s *Session) Login(ctx context.Context, token string, user User) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.ValidationError("token must not be empty").Build()
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return errors.InternalError("encode user profile").WithCause(err).Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, s.tokenKey, token); err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.userKey, string(raw)); err != nil {
		if rerr := s.store.Remove(ctx, s.tokenKey); rerr != nil {
			return stderrors.Join(err, rerr)
		}
		return err
	}
	s.token = token
	s.user = &user
	slog.Info("Session started", slog.String("username", user.Username))
	return nil
}

// Logout clears the stored credential.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// Expire clears the credential after the backend rejected it.
func (s *Session) Expire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return nil
	}
	slog.Warn("Session token rejected by backend; signing out")
	return s.clearLocked(ctx)
}

func (s *Session) clearLocked(ctx context.Context) error {
	s.token = ""
	s.user = nil
	return stderrors.Join(
		s.store.Remove(ctx, s.tokenKey),
		s.store.Remove(ctx, s.userKey),
	)
}
