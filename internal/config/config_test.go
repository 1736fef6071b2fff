package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"neuroflow/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`session_dir = "` + filepath.Join(dir, "sessions") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[pipeline]",
		"filter_low_hz = 0.5",
		"filter_high_hz = 30.0",
		"[logging]",
		`format = "JSON"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if cfg.Pipeline.FilterLowHz != 0.5 || cfg.Pipeline.FilterHighHz != 30.0 {
		t.Fatalf("pipeline overrides not applied: %+v", cfg.Pipeline)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format json, got %q", cfg.Logging.Format)
	}
	// Untouched sections keep defaults.
	if cfg.Pipeline.DecompositionComponents != 15 {
		t.Fatalf("expected default decomposition components, got %d", cfg.Pipeline.DecompositionComponents)
	}
}

func TestLoadRejectsInvertedBand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[pipeline]\nfilter_low_hz = 40.0\nfilter_high_hz = 1.0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for inverted filter band")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to be reported as absent")
	}
	if cfg.Worker.EventBufferSize <= 0 {
		t.Fatalf("expected default worker buffer, got %d", cfg.Worker.EventBufferSize)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
}
