package commands

import (
	"context"
	"fmt"
)

// SyncCmd implements the 'sync' command.
type SyncCmd struct{}

func (s *SyncCmd) Run(g *Global, root *CLI) error {
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

	res, err := d.Tracker().Sync(ctx)
	if err != nil {
		return err
	}
	if res.Endpoint == "" {
		_, _ = fmt.Fprintf(g.Out, "%s (%d ms pending)\n", res.Outcome, res.DurationMS)
		return nil
	}
	_, _ = fmt.Fprintf(g.Out, "%s %ds to %s endpoint\n", res.Outcome, res.Seconds, res.Endpoint)
	return nil
}
