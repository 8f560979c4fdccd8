package api

import (
	"context"
	"net/http"

	"git.home.luguber.info/inful/timetracker/internal/auth"
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
)

type logTimeRequest struct {
	DurationSeconds int64 `json:"durationSeconds"`
}

// LogUserTimeSpent reports seconds of usage for the signed-in user.
func (c *Client) LogUserTimeSpent(ctx context.Context, seconds int64) error {
	token := c.token()
	if token == "" {
		return errors.AuthError("no session token for user time report").
			WithContext("endpoint", UserLogTimePath).
			Build()
	}
	req, err := c.newRequest(ctx, http.MethodPatch, UserLogTimePath, logTimeRequest{DurationSeconds: seconds}, token)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

// LogVisitorTimeSpent reports seconds of anonymous usage.
func (c *Client) LogVisitorTimeSpent(ctx context.Context, seconds int64) error {
	req, err := c.newRequest(ctx, http.MethodPatch, VisitorLogTimePath, logTimeRequest{DurationSeconds: seconds}, "")
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

// LogAppOpen records that the app was opened, attributed to the user when signed in.
func (c *Client) LogAppOpen(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, AppOpenPath, nil, c.token())
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

// TrackReferrer records where the visit came from. An empty referrer is "direct".
func (c *Client) TrackReferrer(ctx context.Context, referrer string) error {
	if referrer == "" {
		referrer = "direct"
	}
	body := struct {
		Referrer string `json:"referrer"`
	}{Referrer: referrer}
	req, err := c.newRequest(ctx, http.MethodPost, TrackReferrerPath, body, "")
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

// LoginResponse is the backend's reply to a login request.
type LoginResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token"`
	User    auth.User `json:"user"`
	Message string    `json:"message,omitempty"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	if username == "" || password == "" {
		return nil, errors.ValidationError("username and password are required").Build()
	}
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}

	req, err := c.newRequest(ctx, http.MethodPost, LoginPath, body, "")
	if err != nil {
		return nil, err
	}
	var resp LoginResponse
	if err := c.doRequest(req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "login rejected"
		}
		return nil, errors.AuthError(msg).WithContext("username", username).Build()
	}
	return &resp, nil
}
