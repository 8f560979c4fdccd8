package daemon

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/lifecycle"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
	"git.home.luguber.info/inful/timetracker/internal/version"
)

// DefaultShutdownTimeout bounds Run's graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Start brings the agent up: restore the session, send the startup pings,
// reconcile any unsent duration, then begin listening for lifecycle events.
// A failed reconciliation is logged and does not prevent startup.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st := d.GetStatus(); st != StatusStopped {
		return errors.DaemonError("daemon is not in stopped state").
			WithContext("status", string(st)).
			Build()
	}
	if d.store == nil {
		return errors.DaemonError("daemon has been shut down").Build()
	}
	d.status.Store(StatusStarting)
	d.startTime = d.clock.Now()
	slog.Info("Starting timetracker agent", slog.String("version", version.Version))

	if err := d.start(ctx); err != nil {
		d.status.Store(StatusError)
		return err
	}

	d.status.Store(StatusRunning)
	attrs := []any{
		logfields.Source(d.source.Name()),
		slog.Bool("logged_in", d.session.IsLoggedIn()),
		slog.Bool("events", d.eventStore != nil),
	}
	if d.httpServer != nil {
		attrs = append(attrs, slog.String("addr", d.httpServer.Addr()))
	}
	slog.Info("Timetracker agent started", attrs...)
	return nil
}

func (d *Daemon) start(ctx context.Context) error {
	if err := d.session.Load(ctx); err != nil {
		slog.Warn("Failed to restore session; continuing signed out", logfields.Error(err))
	}

	if d.projection != nil {
		if err := d.projection.Rebuild(ctx); err != nil {
			slog.Warn("Failed to rebuild delivery history", logfields.Error(err))
		}
	}

	d.sendStartupPings(ctx)

	initial := d.source.Initial(d.config.Lifecycle.InitialState)
	res, err := d.tracker.Start(ctx, initial.IsVisible())
	if err != nil {
		slog.Warn("Startup reconciliation failed; duration kept for next start",
			logfields.Outcome(string(res.Outcome)),
			logfields.Error(err))
	} else {
		slog.Info("Startup reconciliation finished",
			logfields.Outcome(string(res.Outcome)),
			logfields.Endpoint(string(res.Endpoint)),
			logfields.DurationSeconds(res.Seconds))
	}

	d.dispatcher = lifecycle.NewDispatcher(d.tracker, d.recorder, initial)
	if err := d.source.Start(ctx, d.dispatcher); err != nil {
		return err
	}

	d.buildServer()
	if d.httpServer != nil {
		if err := d.httpServer.Start(ctx); err != nil {
			_ = d.source.Stop()
			return err
		}
	}

	if err := d.scheduleHousekeeping(); err != nil {
		return err
	}
	d.scheduler.Start()
	return nil
}

// sendStartupPings reports the app open and referrer without waiting for
// the backend. Failures only matter to the logs.
func (d *Daemon) sendStartupPings(ctx context.Context) {
	stats := d.config.Stats
	if !stats.LogAppOpen && stats.Referrer == "" {
		return
	}
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancelBackground = cancel

	d.background.Add(1)
	go func() {
		defer d.background.Done()
		if stats.LogAppOpen {
			if err := d.client.LogAppOpen(bg); err != nil {
				slog.Debug("App-open ping failed", logfields.Error(err))
			}
		}
		if stats.Referrer != "" {
			if err := d.client.TrackReferrer(bg, stats.Referrer); err != nil {
				slog.Debug("Referrer ping failed", logfields.Error(err))
			}
		}
	}()
}

// Stop persists the running total and tears everything down. The daemon
// cannot be restarted afterwards.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.GetStatus() {
	case StatusStopping:
		return nil
	case StatusStopped:
		if d.store == nil {
			return nil
		}
	}
	d.status.Store(StatusStopping)
	slog.Info("Stopping timetracker agent")

	var errs []error
	if err := d.source.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := d.tracker.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if d.httpServer != nil {
		if err := d.httpServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if d.cancelBackground != nil {
		d.cancelBackground()
	}
	d.background.Wait()
	if err := d.release(); err != nil {
		errs = append(errs, err)
	}

	d.status.Store(StatusStopped)
	err := stderrors.Join(errs...)
	if err != nil {
		slog.Error("Timetracker agent stopped with errors", logfields.Error(err))
		return err
	}
	slog.Info("Timetracker agent stopped", slog.Duration("uptime", d.clock.Since(d.startTime)))
	return nil
}

// Run starts the agent and blocks until ctx is cancelled, then shuts down
// within DefaultShutdownTimeout.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		_ = d.Stop(context.WithoutCancel(ctx))
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	return d.Stop(stopCtx)
}
