package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/timetracker/internal/config"
	"git.home.luguber.info/inful/timetracker/internal/daemon"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
)

// Global carries state shared by all subcommands.
type Global struct {
	Out io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"timetracker.yaml" env:"TIMETRACKER_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run    RunCmd    `cmd:"" help:"Run the tracking agent until interrupted"`
	Sync   SyncCmd   `cmd:"" help:"Report the persisted duration to the backend once"`
	Status StatusCmd `cmd:"" help:"Show the persisted duration and signed-in user"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
	Login  LoginCmd  `cmd:"" help:"Sign in and store the bearer token"`
	Logout LogoutCmd `cmd:"" help:"Forget the stored credentials"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig reads the configuration file and switches logging to the
// configured level and format. --verbose still wins on level.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	c.configureLogging(cfg.Logging)
	return cfg, nil
}

func (c *CLI) configureLogging(lc config.LoggingConfig) {
	level := lc.Level.SlogLevel()
	if c.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openAgent builds an agent for one-shot commands: no HTTP surface, no
// metrics, session restored from storage.
func openAgent(ctx context.Context, cfg *config.Config) (*daemon.Daemon, error) {
	offline := *cfg
	offline.Server.Enabled = false
	offline.Metrics.Enabled = false
	offline.Stats = config.StatsConfig{}

	d, err := daemon.New(&offline)
	if err != nil {
		return nil, err
	}
	if err := d.Session().Load(ctx); err != nil {
		slog.Warn("Failed to restore session; continuing signed out", logfields.Error(err))
	}
	return d, nil
}

func closeAgent(ctx context.Context, d *daemon.Daemon) {
	if err := d.Stop(ctx); err != nil {
		slog.Warn("Failed to close agent cleanly", logfields.Error(err))
	}
}
