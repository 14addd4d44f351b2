// Package deflake provides public constants and helpers for tools integrating
// with deflake: scripts that interpret its exit status and test runners that
// report their results to it.
package deflake

import (
	"encoding/json"
	"fmt"
	"os"
)

// Exit codes returned by the deflake CLI.
// These constants allow external tools to check exit codes symbolically
// rather than using magic numbers.
const (
	// ExitNoFailure indicates that no attempt reproduced a failure.
	ExitNoFailure = 0

	// ExitFailure indicates an internal, infrastructure or configuration error.
	ExitFailure = 1

	// ExitRootCaused indicates that a failing set of tests was isolated and a
	// reproducer command was printed to standard output.
	ExitRootCaused = 10
)

// DefaultSummaryEnv is the environment variable through which deflake tells
// the test runner where to write its summary, unless configured otherwise.
const DefaultSummaryEnv = "DEFLAKE_SUMMARY_OUTPUT"

// Summary is the document a test runner writes after each run.
type Summary struct {
	// RunSpecNames lists the identifiers of the tests that executed, in
	// execution order. Skipped and excluded tests must be absent.
	RunSpecNames []string `json:"runSpecNames"`
	// Failed is true when any executed test failed.
	Failed bool `json:"failed"`
}

// WriteSummary writes s to path.
func WriteSummary(path string, s Summary) error {
	if s.RunSpecNames == nil {
		s.RunSpecNames = []string{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// WriteSummaryFromEnv writes s to the location named by envVar.
// It returns an error when the variable is unset, which means the runner was
// not started by deflake.
func WriteSummaryFromEnv(envVar string, s Summary) error {
	path := os.Getenv(envVar)
	if path == "" {
		return fmt.Errorf("%s is not set", envVar)
	}
	return WriteSummary(path, s)
}
