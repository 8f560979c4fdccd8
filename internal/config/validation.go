package config

import (
	"fmt"
	"net/url"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/guest"
	"git.home.luguber.info/inful/timetracker/internal/lifecycle"
	"git.home.luguber.info/inful/timetracker/internal/storage"
)

// Validate checks a defaulted configuration. The first problem found is
// returned as a config-category error carrying the offending field.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	for _, check := range []func() error{
		cv.validateAPI,
		cv.validateTracker,
		cv.validateStorage,
		cv.validateSlotKeys,
		cv.validateLifecycle,
		cv.validateServer,
		cv.validateEvents,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field, msg string) error {
	return errors.ConfigError(fmt.Sprintf("%s: %s", field, msg)).
		WithContext("field", field).
		Build()
}

func (cv *configurationValidator) validateAPI() error {
	api := cv.config.API
	if api.BaseURL == "" {
		return invalid("api.base_url", "is required")
	}
	u, err := url.Parse(api.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("api.base_url", fmt.Sprintf("must be an absolute http(s) URL, got %q", api.BaseURL))
	}
	if api.Timeout < 0 {
		return invalid("api.timeout", "must not be negative")
	}
	return nil
}

func (cv *configurationValidator) validateTracker() error {
	t := cv.config.Tracker
	if t.FlushInterval < 0 {
		return invalid("tracker.flush_interval", "must not be negative")
	}
	if t.MinSyncDuration < 0 {
		return invalid("tracker.min_sync_duration", "must not be negative")
	}
	return nil
}

func (cv *configurationValidator) validateStorage() error {
	s := cv.config.Storage
	if s.Driver != storage.DriverMemory && s.Path == "" {
		return invalid("storage.path", fmt.Sprintf("is required for driver %q", s.Driver))
	}
	return nil
}

// validateSlotKeys rejects malformed keys and keys that would make two
// components share a slot.
func (cv *configurationValidator) validateSlotKeys() error {
	keys := []struct{ field, key string }{
		{"tracker.storage_key", cv.config.Tracker.StorageKey},
		{"auth.token_key", cv.config.Auth.TokenKey},
		{"auth.user_key", cv.config.Auth.UserKey},
	}
	seen := map[string]string{
		guest.Key(guest.ActionPlace): "guest limiter",
		guest.Key(guest.ActionOpen):  "guest limiter",
	}
	for _, k := range keys {
		if err := storage.ValidateKey(k.key); err != nil {
			return invalid(k.field, fmt.Sprintf("invalid storage key %q", k.key))
		}
		if owner, dup := seen[k.key]; dup {
			return invalid(k.field, fmt.Sprintf("key %q is already used by %s", k.key, owner))
		}
		seen[k.key] = k.field
	}
	return nil
}

func (cv *configurationValidator) validateLifecycle() error {
	l := cv.config.Lifecycle
	switch l.Source {
	case lifecycle.KindFile:
		if l.FilePath == "" {
			return invalid("lifecycle.file_path", "is required for the file source")
		}
	case lifecycle.KindNATS:
		if l.NATSURL == "" {
			return invalid("lifecycle.nats_url", "is required for the nats source")
		}
	}
	return nil
}

func (cv *configurationValidator) validateServer() error {
	if cv.config.Server.Enabled && cv.config.Server.Addr == "" {
		return invalid("server.addr", "is required when the server is enabled")
	}
	if cv.config.Metrics.Enabled && !cv.config.Server.Enabled {
		return invalid("metrics.enabled", "requires server.enabled")
	}
	return nil
}

func (cv *configurationValidator) validateEvents() error {
	e := cv.config.Events
	if !e.Enabled {
		return nil
	}
	if e.Path == "" {
		return invalid("events.path", "is required when events are enabled")
	}
	if e.Retention < 0 {
		return invalid("events.retention", "must not be negative")
	}
	if e.PruneInterval < 0 {
		return invalid("events.prune_interval", "must not be negative")
	}
	return nil
}
