package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SessionDir string `toml:"session_dir"`
	LogDir     string `toml:"log_dir"`
}

// Pipeline contains default stage parameters applied when the caller leaves
// a field unset. The values mirror the interactive defaults of the analysis
// front end.
type Pipeline struct {
	FilterLowHz             float64 `toml:"filter_low_hz"`
	FilterHighHz            float64 `toml:"filter_high_hz"`
	NotchHz                 float64 `toml:"notch_hz"`
	DecompositionComponents int     `toml:"decomposition_components"`
	DecompositionHighpassHz float64 `toml:"decomposition_highpass_hz"`
	EpochBaselineToZero     bool    `toml:"epoch_baseline_to_zero"`
	ConnectivityLowHz       float64 `toml:"connectivity_low_hz"`
	ConnectivityHighHz      float64 `toml:"connectivity_high_hz"`
}

// Batch contains configuration for batch job execution.
type Batch struct {
	MinFreeSpaceMiB int `toml:"min_free_space_mib"`
}

// Worker contains configuration for the worker event bridge.
type Worker struct {
	EventBufferSize int `toml:"event_buffer_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for NeuroFlow.
//
// Configuration sections by subsystem:
//   - Paths: session artifact and log directories
//   - Pipeline: default stage parameters (filter bands, decomposition, windows)
//   - Batch: batch runner limits and preflight thresholds
//   - Worker: event delivery buffer sizing
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Pipeline Pipeline `toml:"pipeline"`
	Batch    Batch    `toml:"batch"`
	Worker   Worker   `toml:"worker"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/neuroflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("neuroflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// WriteSample writes the annotated sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SessionDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Validate checks configuration invariants that cannot be normalized away.
func (c *Config) Validate() error {
	if c.Pipeline.FilterLowHz < 0 || c.Pipeline.FilterHighHz < 0 {
		return errors.New("pipeline filter bands must be non-negative")
	}
	if c.Pipeline.FilterLowHz > 0 && c.Pipeline.FilterHighHz > 0 &&
		c.Pipeline.FilterLowHz >= c.Pipeline.FilterHighHz {
		return fmt.Errorf("pipeline filter band inverted: low %.2f >= high %.2f",
			c.Pipeline.FilterLowHz, c.Pipeline.FilterHighHz)
	}
	if c.Pipeline.DecompositionComponents <= 0 {
		return errors.New("pipeline decomposition_components must be positive")
	}
	if c.Pipeline.ConnectivityLowHz >= c.Pipeline.ConnectivityHighHz {
		return fmt.Errorf("pipeline connectivity band inverted: low %.2f >= high %.2f",
			c.Pipeline.ConnectivityLowHz, c.Pipeline.ConnectivityHighHz)
	}
	if c.Worker.EventBufferSize <= 0 {
		return errors.New("worker event_buffer_size must be positive")
	}
	if c.Batch.MinFreeSpaceMiB < 0 {
		return errors.New("batch min_free_space_mib must be non-negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.SessionDir, err = expandPath(c.Paths.SessionDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
