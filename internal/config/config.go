package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval        = time.Hour
	DefaultQueryTimeout    = 10 * time.Second
	DefaultPushTimeout     = 10 * time.Second
	DefaultMaxAttempts     = 1
	DefaultTimezone        = "UTC"
	DefaultMemoryRows      = 100
	DefaultMemoryNullEvery = 3
)

// Config is the top-level tabwatch configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
	Source  SourceConfig  `yaml:"source"`
	Gateway GatewayConfig `yaml:"gateway"`
	History HistoryConfig `yaml:"history"`
}

// MonitorConfig holds the per-run check settings.
type MonitorConfig struct {
	// Interval is how often a full check run is executed.
	Interval time.Duration `yaml:"interval"`

	// Table is the monitored table name.
	Table string `yaml:"table"`

	// NullColumn is the column whose NULL percentage is measured.
	NullColumn string `yaml:"null_column"`

	// Timezone names the location used to derive the start-of-day
	// boundary for the volume check. Defaults to UTC.
	Timezone string `yaml:"timezone"`

	// QueryTimeout bounds each individual aggregate query.
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// Location resolves the configured timezone name.
func (m MonitorConfig) Location() (*time.Location, error) {
	return time.LoadLocation(m.Timezone)
}

// SourceConfig selects and parameterizes the data source backend.
type SourceConfig struct {
	// Kind is the source backend: postgres | memory.
	Kind string `yaml:"kind"`

	// DSN is the connection string for the postgres backend.
	// Keep the password out of the file and use PasswordEnv instead.
	DSN string `yaml:"dsn"`

	// PasswordEnv is the name of the environment variable holding the
	// database password. Empty means the DSN carries the credentials.
	PasswordEnv string `yaml:"password_env"`

	// Memory parameterizes the simulated in-memory backend.
	Memory MemoryConfig `yaml:"memory"`
}

// Password returns the database password resolved from the environment.
// Returns empty string if PasswordEnv is unset or the variable is not found.
func (s SourceConfig) Password() string {
	if s.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(s.PasswordEnv)
}

// MemoryConfig parameterizes the simulated source: Rows records are
// spread evenly across the current day and every NullEvery-th amount
// is NULL.
type MemoryConfig struct {
	Rows      int `yaml:"rows"`
	NullEvery int `yaml:"null_every"`
}

// GatewayConfig holds push-gateway delivery settings.
type GatewayConfig struct {
	// URL is the push gateway base URL, e.g. "http://localhost:9091".
	URL string `yaml:"url"`

	// Job is the job label the metrics are grouped under.
	Job string `yaml:"job"`

	// Timeout bounds each individual delivery attempt.
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts is the total number of delivery attempts for one run.
	// 1 means a single attempt with no retry.
	MaxAttempts int `yaml:"max_attempts"`
}

// HistoryConfig configures the optional local run-history store.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history.
	Path string `yaml:"path"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Interval:     DefaultInterval,
			Timezone:     DefaultTimezone,
			QueryTimeout: DefaultQueryTimeout,
		},
		Source: SourceConfig{
			Kind: "memory",
			Memory: MemoryConfig{
				Rows:      DefaultMemoryRows,
				NullEvery: DefaultMemoryNullEvery,
			},
		},
		Gateway: GatewayConfig{
			Timeout:     DefaultPushTimeout,
			MaxAttempts: DefaultMaxAttempts,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if cfg.Monitor.Table == "" {
		return fmt.Errorf("monitor.table is required")
	}
	if cfg.Monitor.NullColumn == "" {
		return fmt.Errorf("monitor.null_column is required")
	}
	if cfg.Monitor.QueryTimeout <= 0 {
		return fmt.Errorf("monitor.query_timeout must be positive")
	}
	if _, err := cfg.Monitor.Location(); err != nil {
		return fmt.Errorf("monitor.timezone: %w", err)
	}

	switch cfg.Source.Kind {
	case "postgres":
		if cfg.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for the postgres backend")
		}
	case "memory":
		if cfg.Source.Memory.Rows < 0 {
			return fmt.Errorf("source.memory.rows must not be negative")
		}
		if cfg.Source.Memory.NullEvery < 0 {
			return fmt.Errorf("source.memory.null_every must not be negative")
		}
	default:
		return fmt.Errorf("source.kind: unknown backend %q", cfg.Source.Kind)
	}

	if cfg.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	u, err := url.Parse(cfg.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("gateway.url: %q is not an absolute http(s) URL", cfg.Gateway.URL)
	}
	if cfg.Gateway.Job == "" {
		return fmt.Errorf("gateway.job is required")
	}
	if cfg.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	if cfg.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("gateway.max_attempts must be at least 1")
	}

	// A stuck export must never bleed into the next scheduled run.
	if budget := time.Duration(cfg.Gateway.MaxAttempts) * cfg.Gateway.Timeout; budget >= cfg.Monitor.Interval {
		return fmt.Errorf("gateway retry budget %v must stay below monitor.interval %v", budget, cfg.Monitor.Interval)
	}

	return nil
}
