// Package config provides the configuration schema and loading for the
// conduit CLI server. Values come from CONDUIT_* environment variables, a
// YAML file, or defaults, in that order of precedence.
package config

import "time"

// Config is the top-level server configuration.
type Config struct {
	// Server configures the HTTP listener and identity.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Limits holds the process-wide resource caps. Immutable after start.
	Limits LimitsConfig `yaml:"limits" mapstructure:"limits"`

	// Log configures the slog output.
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Audit configures the optional dispatch audit trail.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Telemetry configures tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// ServerConfig configures the listener and server identity.
type ServerConfig struct {
	// Addr is the listen address. Default "127.0.0.1:8080".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`

	// Name identifies the server in the handshake and health probe.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// SessionTimeout evicts sessions idle for longer than this. Zero
	// disables eviction.
	SessionTimeout time.Duration `yaml:"session_timeout" mapstructure:"session_timeout"`

	// EvictInterval is how often the eviction pass runs.
	EvictInterval time.Duration `yaml:"evict_interval" mapstructure:"evict_interval"`
}

// LimitsConfig caps sessions, message size, and catalog registrations.
// Zero means unlimited except MaxMessageBytes, which defaults to 2 MiB.
type LimitsConfig struct {
	MaxSessions     int `yaml:"max_sessions" mapstructure:"max_sessions" validate:"gte=0"`
	MaxMessageBytes int `yaml:"max_message_bytes" mapstructure:"max_message_bytes" validate:"gte=0"`
	MaxTools        int `yaml:"max_tools" mapstructure:"max_tools" validate:"gte=0"`
	MaxResources    int `yaml:"max_resources" mapstructure:"max_resources" validate:"gte=0"`
	MaxPrompts      int `yaml:"max_prompts" mapstructure:"max_prompts" validate:"gte=0"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`

	// Format selects text or json handlers.
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`

	// File, when set, writes logs to a rotating file instead of stderr.
	File string `yaml:"file" mapstructure:"file"`

	// MaxSizeMB caps the size of one log file before rotation.
	MaxSizeMB int `yaml:"max_size_mb" mapstructure:"max_size_mb" validate:"gte=0"`

	// MaxBackups caps how many rotated files are kept.
	MaxBackups int `yaml:"max_backups" mapstructure:"max_backups" validate:"gte=0"`

	// MaxAgeDays caps how long rotated files are kept.
	MaxAgeDays int `yaml:"max_age_days" mapstructure:"max_age_days" validate:"gte=0"`
}

// AuditConfig configures the dispatch audit trail.
type AuditConfig struct {
	// Enabled turns the audit trail on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database location.
	Path string `yaml:"path" mapstructure:"path"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	// TracingEnabled installs the stdout trace exporter.
	TracingEnabled bool `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			Name:           "conduit",
			SessionTimeout: 30 * time.Minute,
			EvictInterval:  time.Minute,
		},
		Limits: LimitsConfig{
			MaxMessageBytes: 2 << 20,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Audit: AuditConfig{
			Path: "./conduit-audit.db",
		},
	}
}
