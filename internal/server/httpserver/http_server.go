// Package httpserver hosts the agent HTTP API.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	derrors "git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/metrics"
	"git.home.luguber.info/inful/timetracker/internal/server/handlers"
	smw "git.home.luguber.info/inful/timetracker/internal/server/middleware"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
)

// Options wires the server to the running agent. Tracker, Lifecycle, Session
// and Guest are required; History and PrometheusHandler are optional.
type Options struct {
	Addr string

	Tracker   handlers.TrackerAPI
	History   handlers.HistoryAPI
	Lifecycle handlers.LifecycleAPI
	Session   handlers.SessionAPI
	Guest     handlers.GuestAPI

	PrometheusHandler http.Handler
	Recorder          metrics.Recorder
	Clock             clockwork.Clock
}

// Server serves the agent API on a single listener.
type Server struct {
	opts    Options
	handler http.Handler

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// New builds the route table. Nothing listens until Start.
func New(opts Options) *Server {
	errorAdapter := derrors.NewHTTPErrorAdapter(slog.Default())

	monitoring := handlers.NewMonitoringHandlers(opts.Clock)
	api := handlers.NewAPIHandlers(opts.Tracker, opts.History, opts.Session, opts.Clock)
	lc := handlers.NewLifecycleHandlers(opts.Lifecycle, opts.Tracker)
	session := handlers.NewSessionHandlers(opts.Session)
	guestH := handlers.NewGuestHandlers(opts.Guest)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", monitoring.HandleHealthCheck)
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	mux.HandleFunc("GET /api/status", api.HandleStatus)
	mux.HandleFunc("GET /api/history", api.HandleHistory)
	mux.HandleFunc("POST /api/refresh", api.HandleRefresh)
	mux.HandleFunc("POST /api/lifecycle", lc.HandleLifecycle)
	mux.HandleFunc("GET /api/session", session.HandleGet)
	mux.HandleFunc("PUT /api/session", session.HandlePut)
	mux.HandleFunc("DELETE /api/session", session.HandleDelete)
	mux.HandleFunc("GET /api/guest/{action}", guestH.HandleCheck)
	mux.HandleFunc("POST /api/guest/{action}", guestH.HandleRecord)

	chain := smw.Chain(slog.Default(), errorAdapter, opts.Recorder)
	return &Server{opts: opts, handler: chain(mux)}
}

// Handler returns the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds the listener and serves in the background. Binding happens
// synchronously so an address conflict is reported to the caller.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return derrors.DaemonError("http server already started").Build()
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryDaemon, "failed to bind http listener").
			WithContext("addr", s.opts.Addr).
			Build()
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	s.srv = srv
	s.listener = ln
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", slog.String("addr", ln.Addr().String()), slog.String("error", err.Error()))
		}
	}(s.done)

	slog.Info("HTTP server started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down and waits for the serve loop.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryDaemon, "http server shutdown").Build()
	}
	slog.Info("HTTP server stopped")
	return nil
}
