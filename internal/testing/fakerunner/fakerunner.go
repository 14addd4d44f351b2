// Package fakerunner turns a Go test binary into a scriptable stand-in for a
// test runner that writes deflake summaries.
//
// A test package declares
//
//	func TestFakeRunner(t *testing.T) { fakerunner.Main() }
//
// and points the configured command at fakerunner.Command(). When the binary is
// re-executed with the fakerunner environment it behaves like a runner and
// exits; in a normal test run TestFakeRunner returns immediately.
package fakerunner

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/AndreyAkinshin/deflake/pkg/deflake"
)

// Environment variables understood by the fake runner.
const (
	EnvEnabled    = "DEFLAKE_FAKE_RUNNER"
	EnvTests      = "DEFLAKE_FAKE_TESTS"   // JSON array of test identifiers
	EnvCulprits   = "DEFLAKE_FAKE_CULPRIT" // JSON array; the run fails iff all of them run
	EnvMode       = "DEFLAKE_FAKE_MODE"    // "", "no-summary", "garbage" or "empty-failure"
	EnvArgsLog    = "DEFLAKE_FAKE_ARGS_LOG"
	EnvSummaryVar = "DEFLAKE_FAKE_SUMMARY_VAR" // defaults to deflake.DefaultSummaryEnv
)

// Command returns the command line that re-executes the current test binary
// as the fake runner.
func Command() []string {
	return []string{os.Args[0], "-test.run=^TestFakeRunner$", "--"}
}

// BuildCommand returns a build command that appends a line to marker each time
// it runs.
func BuildCommand(marker string) []string {
	return append(Command(), "build", marker)
}

// Env returns the environment enabling the fake runner with the given tests
// and culprits.
func Env(tests, culprits []string) map[string]string {
	t, _ := json.Marshal(tests)
	c, _ := json.Marshal(culprits)
	return map[string]string{
		EnvEnabled:  "1",
		EnvTests:    string(t),
		EnvCulprits: string(c),
	}
}

// Main runs the fake runner when enabled and never returns in that case.
func Main() {
	if os.Getenv(EnvEnabled) != "1" {
		return
	}
	os.Exit(run(argsAfterSeparator(os.Args)))
}

type invocation struct {
	Config   string `json:"config,omitempty"`
	Seed     int64  `json:"seed"`
	FailFast bool   `json:"failFast"`
	Filter   string `json:"filter,omitempty"`
}

func run(args []string) int {
	if len(args) >= 2 && args[0] == "build" {
		return appendLine(args[1], "build")
	}

	var inv invocation
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--config="):
			inv.Config = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "--seed="):
			inv.Seed, _ = strconv.ParseInt(strings.TrimPrefix(arg, "--seed="), 10, 64)
		case arg == "--fail-fast":
			inv.FailFast = true
		case strings.HasPrefix(arg, "--filter="):
			inv.Filter = strings.TrimPrefix(arg, "--filter=")
		}
	}
	if logPath := os.Getenv(EnvArgsLog); logPath != "" {
		data, _ := json.Marshal(inv)
		if code := appendLine(logPath, string(data)); code != 0 {
			return code
		}
	}

	summaryVar := os.Getenv(EnvSummaryVar)
	if summaryVar == "" {
		summaryVar = deflake.DefaultSummaryEnv
	}
	out := os.Getenv(summaryVar)

	switch os.Getenv(EnvMode) {
	case "no-summary":
		fmt.Fprintln(os.Stderr, "fake runner: crashed before writing a summary")
		return 1
	case "garbage":
		return writeFile(out, []byte("this is not json"), 1)
	case "empty-failure":
		return writeFile(out, []byte(`{"runSpecNames":[],"failed":true}`), 1)
	}

	var tests, culprits []string
	_ = json.Unmarshal([]byte(os.Getenv(EnvTests)), &tests)
	_ = json.Unmarshal([]byte(os.Getenv(EnvCulprits)), &culprits)

	var re *regexp.Regexp
	if inv.Filter != "" {
		var err error
		re, err = regexp.Compile(inv.Filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fake runner: bad filter: %v\n", err)
			return 2
		}
	}

	order := append([]string(nil), tests...)
	r := rand.New(rand.NewPCG(uint64(inv.Seed), 0))
	r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	remaining := make(map[string]bool, len(culprits))
	for _, c := range culprits {
		remaining[c] = true
	}
	var summary deflake.Summary

	for _, name := range order {
		if re != nil && !re.MatchString(name) {
			continue
		}
		summary.RunSpecNames = append(summary.RunSpecNames, name)
		fmt.Printf("ran %s\n", name)
		delete(remaining, name)
		if len(culprits) > 0 && len(remaining) == 0 && !summary.Failed {
			summary.Failed = true
			fmt.Printf("FAILED %s\n", name)
			if inv.FailFast {
				break
			}
		}
	}

	if err := deflake.WriteSummary(out, summary); err != nil {
		fmt.Fprintf(os.Stderr, "fake runner: %v\n", err)
		return 2
	}
	if summary.Failed {
		return 1
	}
	return 0
}

func argsAfterSeparator(args []string) []string {
	for i, a := range args {
		if a == "--" {
			return args[i+1:]
		}
	}
	return nil
}

func writeFile(path string, data []byte, code int) int {
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "fake runner: %v\n", err)
		return 2
	}
	return code
}

func appendLine(path, line string) int {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fake runner: %v\n", err)
		return 2
	}
	defer func() { _ = f.Close() }()
	if _, err := fmt.Fprintln(f, line); err != nil {
		return 2
	}
	return 0
}
