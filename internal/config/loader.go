package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the configuration from configFile (or the standard search
// locations when empty), applies CONDUIT_* environment overrides, and
// validates the result.
//
// Environment keys map nested config with underscores, e.g.
// CONDUIT_SERVER_ADDR overrides server.addr.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("conduit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.conduit")
		v.AddConfigPath("/etc/conduit")
	}

	v.SetEnvPrefix("CONDUIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine; defaults and env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.name", def.Server.Name)
	v.SetDefault("server.session_timeout", def.Server.SessionTimeout)
	v.SetDefault("server.evict_interval", def.Server.EvictInterval)
	v.SetDefault("limits.max_message_bytes", def.Limits.MaxMessageBytes)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("log.max_age_days", def.Log.MaxAgeDays)
	v.SetDefault("audit.path", def.Audit.Path)
}

// bindEnvKeys binds the nested keys so environment overrides work without
// a config file present.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.addr",
		"server.name",
		"server.session_timeout",
		"server.evict_interval",
		"limits.max_sessions",
		"limits.max_message_bytes",
		"limits.max_tools",
		"limits.max_resources",
		"limits.max_prompts",
		"log.level",
		"log.format",
		"log.file",
		"log.max_size_mb",
		"log.max_backups",
		"log.max_age_days",
		"audit.enabled",
		"audit.path",
		"telemetry.tracing_enabled",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
