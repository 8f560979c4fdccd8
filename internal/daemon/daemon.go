// Package daemon wires the time-tracking agent together and runs it.
package daemon

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/timetracker/internal/api"
	"git.home.luguber.info/inful/timetracker/internal/auth"
	"git.home.luguber.info/inful/timetracker/internal/config"
	"git.home.luguber.info/inful/timetracker/internal/eventstore"
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/guest"
	"git.home.luguber.info/inful/timetracker/internal/lifecycle"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
	"git.home.luguber.info/inful/timetracker/internal/metrics"
	"git.home.luguber.info/inful/timetracker/internal/server/httpserver"
	"git.home.luguber.info/inful/timetracker/internal/storage"
	"git.home.luguber.info/inful/timetracker/internal/tracker"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Daemon owns every long-lived component of the agent.
type Daemon struct {
	config    *config.Config
	clock     clockwork.Clock
	status    atomic.Value // Status
	startTime time.Time
	mu        sync.Mutex

	registry   *prom.Registry
	recorder   metrics.Recorder
	store      storage.Store
	session    *auth.Session
	client     *api.Client
	eventStore eventstore.Store
	projection *eventstore.DeliveryHistoryProjection
	tracker    *tracker.Tracker
	dispatcher *lifecycle.Dispatcher
	source     lifecycle.Source
	limiter    *guest.Limiter
	httpServer *httpserver.Server
	scheduler  *Scheduler

	// background covers the fire-and-forget startup pings.
	background       sync.WaitGroup
	cancelBackground context.CancelFunc
}

// Option customises construction, mainly for tests.
type Option func(*options)

type options struct {
	clock      clockwork.Clock
	httpClient *http.Client
	store      storage.Store
	source     lifecycle.Source
}

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option { return func(o *options) { o.clock = c } }

// WithHTTPClient replaces the backend HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(o *options) { o.httpClient = hc } }

// WithStore uses s instead of opening the configured storage driver. The
// daemon takes ownership and closes it on Stop.
func WithStore(s storage.Store) Option { return func(o *options) { o.store = s } }

// WithSource uses src instead of the configured lifecycle source.
func WithSource(src lifecycle.Source) Option { return func(o *options) { o.source = src } }

// New builds the agent from cfg. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.ConfigError("configuration is required").Build()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}

	d := &Daemon{config: cfg, clock: o.clock, recorder: metrics.NoopRecorder{}}
	d.status.Store(StatusStopped)

	if err := d.build(o); err != nil {
		d.release()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) build(o options) error {
	cfg := d.config

	if cfg.Metrics.Enabled {
		d.registry = prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = openStorage(cfg.Storage)
		if err != nil {
			return err
		}
	}
	d.store = store

	d.session = auth.NewSession(store, cfg.Auth.TokenKey, cfg.Auth.UserKey)

	client, err := api.NewClient(cfg.API.BaseURL, d.session,
		api.WithHTTPClient(o.httpClient),
		api.WithUserAgent(cfg.API.UserAgent),
		api.WithRecorder(d.recorder),
		api.WithSessionExpiredHook(d.onSessionExpired),
	)
	if err != nil {
		return err
	}
	d.client = client

	var sink tracker.EventSink
	if cfg.Events.Enabled {
		if err := ensureParentDir(cfg.Events.Path); err != nil {
			return err
		}
		es, err := eventstore.NewSQLiteStore(cfg.Events.Path, eventstore.WithClock(d.clock))
		if err != nil {
			return err
		}
		d.eventStore = es
		d.projection = eventstore.NewDeliveryHistoryProjection(es, 0)
		sink = eventstore.NewEmitter(es, d.projection)
	}

	d.tracker, err = tracker.New(tracker.Options{
		Store:           store,
		Auth:            d.session,
		Deliverer:       client,
		Clock:           d.clock,
		Recorder:        d.recorder,
		Events:          sink,
		StorageKey:      cfg.Tracker.StorageKey,
		FlushInterval:   cfg.Tracker.FlushInterval,
		MinSyncDuration: cfg.Tracker.MinSyncDuration,
	})
	if err != nil {
		return err
	}

	d.source = o.source
	if d.source == nil {
		d.source, err = lifecycle.New(lifecycle.Options{
			Kind:        cfg.Lifecycle.Source,
			FilePath:    cfg.Lifecycle.FilePath,
			NATSURL:     cfg.Lifecycle.NATSURL,
			NATSSubject: cfg.Lifecycle.NATSSubject,
		})
		if err != nil {
			return err
		}
	}

	d.limiter = guest.NewLimiter(store, d.clock, guest.DefaultWindow)

	d.scheduler, err = NewScheduler(d.clock)
	if err != nil {
		return err
	}
	return nil
}

// buildServer creates the HTTP server once the dispatcher exists.
func (d *Daemon) buildServer() {
	if !d.config.Server.Enabled {
		return
	}
	opts := httpserver.Options{
		Addr:      d.config.Server.Addr,
		Tracker:   d.tracker,
		Lifecycle: d.dispatcher,
		Session:   d.session,
		Guest:     d.limiter,
		Recorder:  d.recorder,
		Clock:     d.clock,
	}
	if d.registry != nil {
		opts.PrometheusHandler = metrics.HTTPHandler(d.registry)
	}
	if d.projection != nil {
		opts.History = d.projection
	}
	d.httpServer = httpserver.New(opts)
}

func (d *Daemon) onSessionExpired(ctx context.Context) {
	if err := d.session.Expire(ctx); err != nil {
		slog.Warn("Failed to clear expired session", logfields.Error(err))
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Driver == storage.DriverSQLite {
		if err := ensureParentDir(cfg.Path); err != nil {
			return nil, err
		}
	}
	return storage.Open(cfg.Driver, cfg.Path)
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryStorage, "failed to create data directory").
			WithContext("path", dir).
			Build()
	}
	return nil
}

func (d *Daemon) release() error {
	var errs []error
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			errs = append(errs, err)
		}
		d.scheduler = nil
	}
	if d.eventStore != nil {
		if err := d.eventStore.Close(); err != nil {
			errs = append(errs, err)
		}
		d.eventStore = nil
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, err)
		}
		d.store = nil
	}
	return stderrors.Join(errs...)
}

// GetStatus returns the daemon state.
func (d *Daemon) GetStatus() Status {
	if s, ok := d.status.Load().(Status); ok {
		return s
	}
	return StatusStopped
}

// GetStartTime returns when Start last ran.
func (d *Daemon) GetStartTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startTime
}

func (d *Daemon) Tracker() *tracker.Tracker                         { return d.tracker }
func (d *Daemon) Session() *auth.Session                            { return d.session }
func (d *Daemon) Client() *api.Client                               { return d.client }
func (d *Daemon) Projection() *eventstore.DeliveryHistoryProjection { return d.projection }

// Dispatcher and HTTPServer are nil until Start.
func (d *Daemon) Dispatcher() *lifecycle.Dispatcher { return d.dispatcher }
func (d *Daemon) HTTPServer() *httpserver.Server    { return d.httpServer }
