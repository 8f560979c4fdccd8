package config

import (
	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/foundation/normalization"
	"git.home.luguber.info/inful/timetracker/internal/lifecycle"
	"git.home.luguber.info/inful/timetracker/internal/storage"
)

var storageDriverNormalizer = normalization.NewNormalizer(map[string]storage.Driver{
	"file":    storage.DriverFile,
	"sqlite":  storage.DriverSQLite,
	"sqlite3": storage.DriverSQLite,
	"memory":  storage.DriverMemory,
}, storage.DriverFile)

var lifecycleSourceNormalizer = normalization.NewNormalizer(map[string]lifecycle.Kind{
	"manual": lifecycle.KindManual,
	"file":   lifecycle.KindFile,
	"nats":   lifecycle.KindNATS,
}, lifecycle.KindManual)

// Normalize case-folds enumerations in place. Empty values are left for
// ApplyDefaults; unknown values are rejected.
func Normalize(cfg *Config) error {
	if cfg.Storage.Driver != "" {
		d, err := storageDriverNormalizer.NormalizeWithError(string(cfg.Storage.Driver))
		if err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid storage.driver").
				WithContext("value", string(cfg.Storage.Driver)).
				Build()
		}
		cfg.Storage.Driver = d
	}

	if cfg.Lifecycle.Source != "" {
		k, err := lifecycleSourceNormalizer.NormalizeWithError(string(cfg.Lifecycle.Source))
		if err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid lifecycle.source").
				WithContext("value", string(cfg.Lifecycle.Source)).
				Build()
		}
		cfg.Lifecycle.Source = k
	}

	if cfg.Lifecycle.InitialState != "" {
		s, err := lifecycle.ParseState(string(cfg.Lifecycle.InitialState))
		if err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid lifecycle.initial_state").
				WithContext("value", string(cfg.Lifecycle.InitialState)).
				Build()
		}
		cfg.Lifecycle.InitialState = s
	}

	// Logging never blocks startup: unknown values fall back to the defaults.
	if cfg.Logging.Level != "" {
		cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	}
	if cfg.Logging.Format != "" {
		cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	}
	return nil
}
