package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/timetracker/internal/auth"
	"git.home.luguber.info/inful/timetracker/internal/guest"
	"git.home.luguber.info/inful/timetracker/internal/lifecycle"
	"git.home.luguber.info/inful/timetracker/internal/metrics"
	"git.home.luguber.info/inful/timetracker/internal/server/responses"
	"git.home.luguber.info/inful/timetracker/internal/storage"
	"git.home.luguber.info/inful/timetracker/internal/tracker"
)

type nopDeliverer struct{}

func (nopDeliverer) LogUserTimeSpent(context.Context, int64) error    { return nil }
func (nopDeliverer) LogVisitorTimeSpent(context.Context, int64) error { return nil }

type fixture struct {
	clock   *clockwork.FakeClock
	tracker *tracker.Tracker
	server  *Server
}

func newFixture(t *testing.T, addr string) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := storage.NewMemoryStore()
	session := auth.NewSession(store, "", "")

	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	tr, err := tracker.New(tracker.Options{
		Store:     store,
		Auth:      session,
		Deliverer: nopDeliverer{},
		Clock:     clock,
		Recorder:  rec,
	})
	require.NoError(t, err)
	_, err = tr.Start(ctx, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close(context.Background()) })

	srv := New(Options{
		Addr:              addr,
		Tracker:           tr,
		Lifecycle:         lifecycle.NewDispatcher(tr, rec, lifecycle.StateHidden),
		Session:           session,
		Guest:             guest.NewLimiter(store, clock, 0),
		PrometheusHandler: metrics.HTTPHandler(reg),
		Recorder:          rec,
		Clock:             clock,
	})
	return &fixture{clock: clock, tracker: tr, server: srv}
}

func TestRoutes(t *testing.T) {
	f := newFixture(t, "")
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	do := func(method, path, body string) (*http.Response, string) {
		req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(b)
	}

	resp, _ := do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(http.MethodPost, "/api/lifecycle", `{"state":"visible"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.tracker.Accruing())

	f.clock.Advance(2500 * time.Millisecond)

	resp, body := do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st responses.StatusResponse
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.True(t, st.Accruing)
	assert.Equal(t, int64(2500), st.AccumulatedMS)

	resp, _ = do(http.MethodPost, "/api/lifecycle", `{"state":"pagehide"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, f.tracker.Accruing())

	// The journal is not wired in this fixture.
	resp, _ = do(http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(http.MethodPut, "/api/session", `{"token":"t","user":{"username":"ada"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.tracker.Status().LoggedIn)

	resp, _ = do(http.MethodPost, "/api/guest/open", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(http.MethodPost, "/api/guest/open", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = do(http.MethodDelete, "/api/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, body = do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "timetracker_lifecycle_events_total")
	assert.Contains(t, body, "timetracker_http_request_duration_seconds")
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, "127.0.0.1:0")
	ctx := context.Background()

	require.NoError(t, f.server.Start(ctx))
	addr := f.server.Addr()
	require.NotEmpty(t, addr)
	require.Error(t, f.server.Start(ctx))

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.server.Stop(stopCtx))
	assert.Empty(t, f.server.Addr())
	require.NoError(t, f.server.Stop(stopCtx))
}

func TestStartAddressInUse(t *testing.T) {
	first := newFixture(t, "127.0.0.1:0")
	require.NoError(t, first.server.Start(context.Background()))
	defer func() { _ = first.server.Stop(context.Background()) }()

	second := newFixture(t, first.server.Addr())
	err := second.server.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind http listener")
}
