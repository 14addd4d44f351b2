package config

import (
	"fmt"
	"regexp"
	"strings"
)

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks semantic constraints the schema cannot express.
func Validate(cfg *Config) error {
	if len(cfg.Command) == 0 {
		return &ValidationError{Field: "command", Message: "is required"}
	}
	for _, arg := range cfg.Command {
		if strings.HasPrefix(arg, "--seed=") || strings.HasPrefix(arg, "--filter=") || arg == "--fail-fast" {
			return &ValidationError{
				Field:   "command",
				Message: fmt.Sprintf("must not contain %q; deflake adds seed, fail-fast and filter arguments itself", arg),
			}
		}
	}
	if !envNamePattern.MatchString(cfg.SummaryEnv) {
		return &ValidationError{Field: "summary_env", Message: "must be a valid environment variable name"}
	}
	if _, ok := cfg.Env[cfg.SummaryEnv]; ok {
		return &ValidationError{
			Field:   "env",
			Message: fmt.Sprintf("must not set %s; it is reserved for the summary location", cfg.SummaryEnv),
		}
	}
	for name := range cfg.Env {
		if !envNamePattern.MatchString(name) {
			return &ValidationError{Field: "env", Message: fmt.Sprintf("invalid variable name %q", name)}
		}
	}
	return nil
}
