// Package config loads and validates vigil's runtime configuration, bound
// to cobra flags via viper exactly as the upstream CLI scaffolding does.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// enabledProbeNames lists every probe name the config is allowed to
// reference under enabled_probes.
var enabledProbeNames = map[string]bool{
	"process": true,
	"file":    true,
	"network": true,
	"memory":  true,
	"user":    true,
	"rootkit": true,
}

// Config is vigil's complete runtime configuration.
type Config struct {
	ThreatThreshold          float64  `mapstructure:"threat_threshold"`
	AutoResponseEnabled      bool     `mapstructure:"auto_response_enabled"`
	EnabledProbes            []string `mapstructure:"enabled_probes"`
	FileWatchPaths           []string `mapstructure:"file_watch_paths"`
	CorrelationWindowSeconds int      `mapstructure:"correlation_window_seconds"`
	CorrelationTickSeconds   int      `mapstructure:"correlation_tick_seconds"`
	LogDir                   string   `mapstructure:"log_dir"`
	KVPath                   string   `mapstructure:"kv_path"`
	RetentionDays            int      `mapstructure:"retention_days"`
	RulesPath                string   `mapstructure:"rules_path"`
	BaselineRulesPath        string   `mapstructure:"baseline_rules_path"`
	ResponseEndpoint         string   `mapstructure:"response_endpoint"`
}

// Defaults returns the configuration used when no overrides are given.
func Defaults() Config {
	return Config{
		ThreatThreshold:          7.0,
		AutoResponseEnabled:      false,
		EnabledProbes:            []string{"process", "file", "network", "memory", "user", "rootkit"},
		FileWatchPaths:           nil,
		CorrelationWindowSeconds: 300,
		CorrelationTickSeconds:   30,
		LogDir:                   "/var/log/vigil",
		KVPath:                   "/var/lib/vigil/events.db",
		RetentionDays:            30,
	}
}

// Load reads configuration from cfgFile (if non-empty) or the conventional
// search path (".", "$HOME/.vigil", "/etc/vigil"), falling back silently to
// Defaults() when no config file is present, then validates the result.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	d := Defaults()
	v.SetDefault("threat_threshold", d.ThreatThreshold)
	v.SetDefault("auto_response_enabled", d.AutoResponseEnabled)
	v.SetDefault("enabled_probes", d.EnabledProbes)
	v.SetDefault("file_watch_paths", d.FileWatchPaths)
	v.SetDefault("correlation_window_seconds", d.CorrelationWindowSeconds)
	v.SetDefault("correlation_tick_seconds", d.CorrelationTickSeconds)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("kv_path", d.KVPath)
	v.SetDefault("retention_days", d.RetentionDays)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.vigil")
		v.AddConfigPath("/etc/vigil")
		v.SetConfigName("config")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configuration errors that must be fatal at startup: an
// out-of-range threshold, an unknown probe name, or a non-positive
// correlation window or tick.
func Validate(cfg Config) error {
	if cfg.ThreatThreshold < 0.0 || cfg.ThreatThreshold > 10.0 {
		return fmt.Errorf("threat_threshold %.2f out of range [0,10]", cfg.ThreatThreshold)
	}
	for _, probe := range cfg.EnabledProbes {
		if !enabledProbeNames[probe] {
			return fmt.Errorf("unknown probe name %q in enabled_probes", probe)
		}
	}
	if cfg.CorrelationWindowSeconds <= 0 {
		return fmt.Errorf("correlation_window_seconds must be positive, got %d", cfg.CorrelationWindowSeconds)
	}
	if cfg.CorrelationTickSeconds <= 0 {
		return fmt.Errorf("correlation_tick_seconds must be positive, got %d", cfg.CorrelationTickSeconds)
	}
	return nil
}
