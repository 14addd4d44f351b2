package config

import "maps"

// Default configuration values.
const (
	DefaultSummaryEnv = "DEFLAKE_SUMMARY_OUTPUT"
	DefaultDir        = "."
	DefaultConfigPath = "src/test/unit/jasmine.json"

	// ProfileSummaryEnv is the variable read by the built-in profile's reporter.
	ProfileSummaryEnv = "CHROMIUMIDE_UNIT_TEST_SUMMARY_OUTPUT"
)

// The built-in runner profile: jasmine under node, with source maps.
var (
	defaultCommand = []string{"npx", "jasmine", "--color"}
	defaultBuild   = []string{"npm", "run", "build-tests"}
	defaultEnv     = map[string]string{
		"NODE_OPTIONS": "-r source-map-support/register",
		"NODE_PATH":    "out/src/test/unit/injected_modules",
	}
)

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, map[string]any{})
	return cfg
}

// applyDefaults fills in default values for unset configuration fields.
// A configuration that sets command describes its runner completely, so the
// built-in runner profile is only applied when command is absent.
func applyDefaults(cfg *Config, raw map[string]any) {
	if _, ok := raw["command"]; !ok {
		applyRunnerProfile(cfg, raw)
	}
	if cfg.SummaryEnv == "" {
		cfg.SummaryEnv = DefaultSummaryEnv
	}
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.Env == nil {
		cfg.Env = map[string]string{}
	}
}

func applyRunnerProfile(cfg *Config, raw map[string]any) {
	cfg.Command = append([]string(nil), defaultCommand...)
	if _, ok := raw["config_path"]; !ok {
		cfg.ConfigPath = DefaultConfigPath
	}
	if _, ok := raw["summary_env"]; !ok {
		cfg.SummaryEnv = ProfileSummaryEnv
	}
	if _, ok := raw["build"]; !ok {
		cfg.Build = append([]string(nil), defaultBuild...)
	}
	if _, ok := raw["env"]; !ok {
		cfg.Env = maps.Clone(defaultEnv)
	}
}
