// Package api is the HTTP client for the backend that receives usage reports.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
	"git.home.luguber.info/inful/timetracker/internal/metrics"
)

// Backend endpoints.
const (
	UserLogTimePath    = "/api/users/log-time"
	VisitorLogTimePath = "/api/visitors/log-time"
	AppOpenPath        = "/api/visitors/opened-app"
	TrackReferrerPath  = "/api/stats/track-referrer"
	LoginPath          = "/api/auth/login"
)

const defaultUserAgent = "timetracker/1.0"

// Credentials supplies the bearer token for authenticated calls.
type Credentials interface {
	Token() string
}

// Client talks to the backend API.
type Client struct {
	httpClient       *http.Client
	baseURL          *url.URL
	userAgent        string
	creds            Credentials
	recorder         metrics.Recorder
	onSessionExpired func(ctx context.Context)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRecorder sets the metrics recorder for request durations.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithSessionExpiredHook registers fn to run when the backend rejects the
// bearer token (a 400/401 whose body mentions the token or denies access).
func WithSessionExpiredHook(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

// NewClient creates a Client for baseURL. creds may be nil for anonymous use.
func NewClient(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.ConfigError("invalid API base URL").
			WithCause(err).
			WithContext("base_url", baseURL).
			Build()
	}
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    u,
		userAgent:  defaultUserAgent,
		creds:      creds,
		recorder:   metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) token() string {
	if c.creds == nil {
		return ""
	}
	return c.creds.Token()
}

// newRequest builds a request for endpoint relative to the base URL. A
// non-empty bearer sets the Authorization header.
func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any, bearer string) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(strings.TrimSuffix(u.Path, "/"), strings.TrimPrefix(endpoint, "/"))

	reader := io.Reader(http.NoBody)
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.InternalError("failed to marshal request body").
				WithCause(err).
				WithContext("endpoint", endpoint).
				Build()
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.InternalError("failed to create request").
			WithCause(err).
			WithContext("method", method).
			WithContext("url", u.String()).
			Build()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req, nil
}

// doRequest executes req and decodes a JSON response into result when non-nil.
func (c *Client) doRequest(req *http.Request, result any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.ObserveRequestDuration(req.URL.Path, time.Since(start), 0)
		return errors.NetworkError("backend request failed").
			WithCause(err).
			WithContext("method", req.Method).
			WithContext("url", req.URL.String()).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()
	c.recorder.ObserveRequestDuration(req.URL.Path, time.Since(start), resp.StatusCode)

	if resp.StatusCode >= 400 {
		limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		bodyStr := strings.ReplaceAll(string(limitedBody), "\n", " ")

		if isSessionRejection(resp.StatusCode, bodyStr) && c.onSessionExpired != nil {
			slog.Warn("Backend rejected session token",
				logfields.Path(req.URL.Path),
				logfields.Status(resp.StatusCode))
			c.onSessionExpired(context.WithoutCancel(req.Context()))
		}

		category := errors.CategoryNetwork
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			category = errors.CategoryAuth
		case http.StatusNotFound:
			category = errors.CategoryNotFound
		}

		b := errors.NewError(category, fmt.Sprintf("backend API error: %s", resp.Status)).
			WithContext("status", resp.Status).
			WithContext("code", resp.StatusCode).
			WithContext("url", req.URL.String()).
			WithContext("response", bodyStr)
		if msg := serverMessage(limitedBody); msg != "" {
			b = b.WithContext("message", msg)
		}
		if category == errors.CategoryNetwork {
			b = b.RetryLater()
		}
		return b.Build()
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errors.NetworkError("failed to decode backend response").
				WithCause(err).
				WithContext("url", req.URL.String()).
				Build()
		}
	}
	return nil
}

// isSessionRejection mirrors how the backend signals an invalid or expired token.
func isSessionRejection(status int, body string) bool {
	if status != http.StatusUnauthorized && status != http.StatusBadRequest {
		return false
	}
	return strings.Contains(body, "token") || strings.Contains(body, "Access denied")
}

// serverMessage extracts {"message": "..."} from an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}
