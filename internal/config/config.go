// Package config loads the deflake configuration that describes how to build
// and invoke the test runner.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/AndreyAkinshin/deflake/internal/schema"
)

// DefaultFile is the configuration file looked up in the working directory
// when no path is given.
const DefaultFile = ".deflake.yaml"

// Config describes the test runner.
type Config struct {
	// Command is the runner command line without seed, fail-fast and filter arguments.
	Command []string `yaml:"command"`
	// ConfigPath is passed to the runner as --config=<path>.
	ConfigPath string `yaml:"config_path"`
	// SummaryEnv names the environment variable that tells the runner where to
	// write its summary.
	SummaryEnv string `yaml:"summary_env"`
	// Env is added to the environment of every runner invocation.
	Env map[string]string `yaml:"env"`
	// Build runs once before the first runner invocation. Empty disables it.
	Build []string `yaml:"build"`
	// Dir is the working directory for Build and Command.
	Dir string `yaml:"dir"`
}

// Load reads and parses a YAML configuration file, validates it against the
// embedded schema, applies defaults and returns warnings for unknown keys.
func Load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for in-memory data.
func Parse(data []byte) (*Config, []string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := schema.ValidateConfig(raw); err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	warnings := detectUnknownFields(raw)

	applyDefaults(&cfg, raw)

	if err := Validate(&cfg); err != nil {
		return nil, warnings, err
	}
	return &cfg, warnings, nil
}

// LoadOrDefault loads path when set. Otherwise it loads the nearest
// DefaultFile found by FindFile, and falls back to Default when there is none.
// A relative dir in a loaded file is resolved against the file's directory,
// so the runner starts in the same place wherever deflake is invoked.
func LoadOrDefault(path string) (*Config, []string, error) {
	if path == "" {
		found, err := FindFile()
		if errors.Is(err, ErrNoConfigFile) {
			return Default(), nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		path = found
	}

	cfg, warnings, err := Load(path)
	if err != nil {
		return nil, warnings, err
	}
	if !filepath.IsAbs(cfg.Dir) {
		cfg.Dir = filepath.Join(filepath.Dir(path), cfg.Dir)
	}
	return cfg, warnings, nil
}
