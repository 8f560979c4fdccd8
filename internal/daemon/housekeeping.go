package daemon

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/timetracker/internal/logfields"
)

const (
	jobPruneEvents    = "prune-events"
	jobRefreshPending = "refresh-pending-metric"

	pendingRefreshInterval = 15 * time.Second
)

// scheduleHousekeeping registers the periodic jobs the configuration asks for.
func (d *Daemon) scheduleHousekeeping() error {
	if d.eventStore != nil && d.config.Events.Retention > 0 {
		if _, err := d.scheduler.ScheduleEvery(jobPruneEvents, d.config.Events.PruneInterval, d.pruneEvents); err != nil {
			return err
		}
	}
	if d.registry != nil {
		if _, err := d.scheduler.ScheduleEvery(jobRefreshPending, pendingRefreshInterval, d.refreshPending); err != nil {
			return err
		}
	}
	return nil
}

// pruneEvents drops journal entries older than the retention window.
func (d *Daemon) pruneEvents(ctx context.Context) {
	cutoff := d.clock.Now().Add(-d.config.Events.Retention)
	n, err := d.eventStore.PruneBefore(ctx, cutoff)
	if err != nil {
		slog.Warn("Event pruning failed", logfields.JobName(jobPruneEvents), logfields.Error(err))
		return
	}
	if n > 0 {
		slog.Info("Pruned old events",
			logfields.JobName(jobPruneEvents),
			slog.Int64("removed", n),
			slog.Time("cutoff", cutoff))
	}
}

// refreshPending publishes the persisted duration so the gauge reflects
// flushes as well as reconciliations.
func (d *Daemon) refreshPending(ctx context.Context) {
	ms, err := d.tracker.Persisted(ctx)
	if err != nil {
		slog.Debug("Pending gauge refresh failed", logfields.JobName(jobRefreshPending), logfields.Error(err))
		return
	}
	d.recorder.SetPendingMilliseconds(ms)
}
