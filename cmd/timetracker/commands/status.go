package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/timetracker/internal/auth"
	"git.home.luguber.info/inful/timetracker/internal/eventstore"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	JSON bool `help:"Print machine-readable JSON"`
}

type statusReport struct {
	PersistedMS int64              `json:"persisted_ms"`
	LoggedIn    bool               `json:"logged_in"`
	User        *auth.User         `json:"user,omitempty"`
	History     *eventstore.Totals `json:"history,omitempty"`
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	d, err := openAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAgent(ctx, d)

	ms, err := d.Tracker().Persisted(ctx)
	if err != nil {
		return err
	}
	report := statusReport{PersistedMS: ms, LoggedIn: d.Session().IsLoggedIn()}
	if u, ok := d.Session().CurrentUser(); ok {
		report.User = &u
	}
	if p := d.Projection(); p != nil {
		if err := p.Rebuild(ctx); err != nil {
			slog.Warn("Failed to read delivery history", logfields.Error(err))
		} else {
			totals := p.GetTotals()
			report.History = &totals
		}
	}

	if s.JSON {
		enc := json.NewEncoder(g.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	_, _ = fmt.Fprintf(g.Out, "Persisted: %d ms\n", report.PersistedMS)
	if report.User != nil {
		_, _ = fmt.Fprintf(g.Out, "Signed in: %s\n", report.User.Username)
	} else {
		_, _ = fmt.Fprintln(g.Out, "Signed in: no")
	}
	if h := report.History; h != nil {
		_, _ = fmt.Fprintf(g.Out, "Delivered: %d reports, %d s (failed %d, discarded %d)\n",
			h.Delivered, h.DeliveredSeconds, h.Failed, h.Discarded)
	}
	return nil
}
