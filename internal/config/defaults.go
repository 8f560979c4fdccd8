package config

import (
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/timetracker/internal/auth"
	"git.home.luguber.info/inful/timetracker/internal/lifecycle"
	"git.home.luguber.info/inful/timetracker/internal/storage"
	"git.home.luguber.info/inful/timetracker/internal/tracker"
	"git.home.luguber.info/inful/timetracker/internal/version"
)

const (
	DefaultDataDir       = ".timetracker"
	DefaultAPITimeout    = 10 * time.Second
	DefaultServerAddr    = "127.0.0.1:7420"
	DefaultRetention     = 30 * 24 * time.Hour
	DefaultPruneInterval = time.Hour
)

// DefaultApplier applies defaults for one configuration section.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

type apiDefaults struct{}

func (apiDefaults) Domain() string { return "api" }

func (apiDefaults) ApplyDefaults(cfg *Config) {
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultAPITimeout
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = version.UserAgent()
	}
}

type trackerDefaults struct{}

func (trackerDefaults) Domain() string { return "tracker" }

func (trackerDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Tracker.StorageKey == "" {
		cfg.Tracker.StorageKey = tracker.DefaultStorageKey
	}
	if cfg.Tracker.FlushInterval == 0 {
		cfg.Tracker.FlushInterval = tracker.DefaultFlushInterval
	}
	if cfg.Tracker.MinSyncDuration == 0 {
		cfg.Tracker.MinSyncDuration = tracker.DefaultMinSyncDuration
	}
}

type storageDefaults struct{}

func (storageDefaults) Domain() string { return "storage" }

func (storageDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = storage.DriverFile
	}
	if cfg.Storage.Path != "" {
		return
	}
	switch cfg.Storage.Driver {
	case storage.DriverSQLite:
		cfg.Storage.Path = filepath.Join(DefaultDataDir, "slots.db")
	case storage.DriverFile:
		cfg.Storage.Path = DefaultDataDir
	}
}

type authDefaults struct{}

func (authDefaults) Domain() string { return "auth" }

func (authDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Auth.TokenKey == "" {
		cfg.Auth.TokenKey = auth.DefaultTokenKey
	}
	if cfg.Auth.UserKey == "" {
		cfg.Auth.UserKey = auth.DefaultUserKey
	}
}

type lifecycleDefaults struct{}

func (lifecycleDefaults) Domain() string { return "lifecycle" }

func (lifecycleDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Lifecycle.Source == "" {
		cfg.Lifecycle.Source = lifecycle.KindManual
	}
	if cfg.Lifecycle.Source == lifecycle.KindNATS && cfg.Lifecycle.NATSSubject == "" {
		cfg.Lifecycle.NATSSubject = lifecycle.DefaultNATSSubject
	}
	if cfg.Lifecycle.InitialState == "" {
		cfg.Lifecycle.InitialState = lifecycle.StateVisible
	}
}

type serverDefaults struct{}

func (serverDefaults) Domain() string { return "server" }

func (serverDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
}

type eventsDefaults struct{}

func (eventsDefaults) Domain() string { return "events" }

func (eventsDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Events.Path == "" {
		cfg.Events.Path = filepath.Join(DefaultDataDir, "events.db")
	}
	if cfg.Events.Retention == 0 {
		cfg.Events.Retention = DefaultRetention
	}
	if cfg.Events.PruneInterval == 0 {
		cfg.Events.PruneInterval = DefaultPruneInterval
	}
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}

var defaultAppliers = []DefaultApplier{
	apiDefaults{},
	trackerDefaults{},
	storageDefaults{},
	authDefaults{},
	lifecycleDefaults{},
	serverDefaults{},
	eventsDefaults{},
	loggingDefaults{},
}

// ApplyDefaults fills every unset field. It is idempotent.
func ApplyDefaults(cfg *Config) {
	for _, a := range defaultAppliers {
		a.ApplyDefaults(cfg)
	}
}
