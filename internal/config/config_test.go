package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestValidateRejectsOutOfRangeThreshold(t *testing.T) {
	cfg := Defaults()
	cfg.ThreatThreshold = 10.5
	if err := Validate(cfg); err == nil {
		t.Error("expected an error for a threshold above 10")
	}
	cfg.ThreatThreshold = -1
	if err := Validate(cfg); err == nil {
		t.Error("expected an error for a negative threshold")
	}
}

func TestValidateRejectsUnknownProbe(t *testing.T) {
	cfg := Defaults()
	cfg.EnabledProbes = []string{"process", "drone"}
	if err := Validate(cfg); err == nil {
		t.Error("expected an error for an unknown probe name")
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("threat_threshold: 5.5\nauto_response_enabled: true\n"), 0o644)

	v := viper.New()
	cfg, err := Load(v, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ThreatThreshold != 5.5 {
		t.Errorf("expected threshold 5.5, got %v", cfg.ThreatThreshold)
	}
	if !cfg.AutoResponseEnabled {
		t.Error("expected auto_response_enabled true")
	}
}

func TestLoadFallsBackToDefaultsWhenNoFileFound(t *testing.T) {
	dir := t.TempDir()
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")

	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ThreatThreshold != Defaults().ThreatThreshold {
		t.Errorf("expected default threshold, got %v", cfg.ThreatThreshold)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("threat_threshold: 99\n"), 0o644)

	v := viper.New()
	if _, err := Load(v, path); err == nil {
		t.Error("expected Load to reject an out-of-range threshold")
	}
}
