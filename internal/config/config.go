package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/lifecycle"
	"git.home.luguber.info/inful/timetracker/internal/storage"
)

// Config is the agent configuration file.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Events    EventsConfig    `yaml:"events"`
	Stats     StatsConfig     `yaml:"stats"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// APIConfig points at the backend that receives time reports.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent,omitempty"`
}

// TrackerConfig tunes accrual and reconciliation.
type TrackerConfig struct {
	StorageKey      string        `yaml:"storage_key"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	MinSyncDuration time.Duration `yaml:"min_sync_duration"`
}

// StorageConfig selects the persistent slot backend.
type StorageConfig struct {
	Driver storage.Driver `yaml:"driver"`
	Path   string         `yaml:"path"`
}

// AuthConfig names the slots holding the session credential.
type AuthConfig struct {
	TokenKey string `yaml:"token_key"`
	UserKey  string `yaml:"user_key"`
}

// LifecycleConfig selects where foreground/background transitions come from.
type LifecycleConfig struct {
	Source       lifecycle.Kind  `yaml:"source"`
	FilePath     string          `yaml:"file_path,omitempty"`
	NATSURL      string          `yaml:"nats_url,omitempty"`
	NATSSubject  string          `yaml:"nats_subject,omitempty"`
	InitialState lifecycle.State `yaml:"initial_state"`
}

// ServerConfig controls the agent HTTP API.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MetricsConfig toggles the Prometheus recorder and /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// EventsConfig controls the delivery journal.
type EventsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// StatsConfig controls the fire-and-forget startup pings.
type StatsConfig struct {
	LogAppOpen bool   `yaml:"log_app_open"`
	Referrer   string `yaml:"referrer,omitempty"`
}

// LoggingConfig configures the slog handler installed by the CLI.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, defaults and validates a configuration file. Dotenv
// files next to the working directory are applied first so ${VAR}
// references can use them.
func Load(configPath string) (*Config, error) {
	if _, err := loadEnvFiles(""); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to load environment file").Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}
	return Parse(data)
}

// Parse decodes configuration from YAML bytes after ${VAR} expansion.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Build()
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Default()
	example.API.BaseURL = "https://api.example.com"
	example.Stats.LogAppOpen = true
	example.Server.Enabled = true
	example.Metrics.Enabled = true
	example.Events.Enabled = true

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "failed to create config directory").
				WithContext("path", dir).
				Build()
		}
	}
	// #nosec G306 -- example config holds no secrets
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
