package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/AndreyAkinshin/deflake/internal/checkpoint"
	"github.com/AndreyAkinshin/deflake/internal/errors"
	"github.com/AndreyAkinshin/deflake/internal/record"
	"github.com/AndreyAkinshin/deflake/internal/testing/fakerunner"
)

func TestFakeRunner(t *testing.T) { fakerunner.Main() }

// writeConfig writes a configuration that runs the fake runner and returns its path.
func writeConfig(t *testing.T, env map[string]string) string {
	t.Helper()
	data, err := yaml.Marshal(map[string]any{
		"command": fakerunner.Command(),
		"env":     env,
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "deflake.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := RunWithWriters(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return lines[len(lines)-1]
}

func TestRun_RootCause(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	recordPath := filepath.Join(dir, "state.json.zst")
	traceDir := filepath.Join(dir, "trace")
	cfgPath := writeConfig(t, fakerunner.Env([]string{"A", "B", "C", "D"}, []string{"B"}))

	code, stdout, stderr := runCLI(t, "run",
		"--config", cfgPath,
		"--try", "10",
		"--shuffle-seed", "1",
		"--record", recordPath,
		"--trace", traceDir,
		"-q")
	if code != errors.ExitRootCaused {
		t.Fatalf("exit code = %d, want %d\nstderr:\n%s", code, errors.ExitRootCaused, stderr)
	}

	if !strings.Contains(stdout, "Found 1 specs running which results in failure. Command:") {
		t.Errorf("stdout = %q, want result message", stdout)
	}
	reproducer := lastLine(stdout)
	if !strings.Contains(reproducer, "'--filter=^(B)$'") {
		t.Errorf("reproducer = %q, want exact filter for B", reproducer)
	}
	if !strings.Contains(reproducer, fakerunner.EnvEnabled+"=1") {
		t.Errorf("reproducer = %q, want configured env", reproducer)
	}
	if strings.Contains(reproducer, "DEFLAKE_SUMMARY_OUTPUT") {
		t.Errorf("reproducer = %q, want summary location omitted", reproducer)
	}

	saved, err := checkpoint.New(recordPath).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved == nil || !slices.Equal(saved.RunSpecNames, []string{"B"}) {
		t.Errorf("checkpoint = %+v, want [B]", saved)
	}

	code, stdout, stderr = runCLI(t, "trace", traceDir)
	if code != 0 {
		t.Fatalf("trace exit code = %d\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "find\tround=1") || !strings.Contains(stdout, "FAILED") {
		t.Errorf("trace output = %q", stdout)
	}
}

func TestRun_NoFailure(t *testing.T) {
	t.Parallel()
	argsLog := filepath.Join(t.TempDir(), "args.log")
	env := fakerunner.Env([]string{"A", "B"}, nil)
	env[fakerunner.EnvArgsLog] = argsLog
	cfgPath := writeConfig(t, env)

	code, stdout, stderr := runCLI(t, "--config", cfgPath, "--try", "3", "-q")
	if code != errors.ExitNoFailure {
		t.Fatalf("exit code = %d, want 0\nstderr:\n%s", code, stderr)
	}
	if got, want := stdout, "No failure found in 3 attempts\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}

	invocations := readArgsLog(t, argsLog)
	if len(invocations) != 3 {
		t.Fatalf("runner invoked %d times, want 3", len(invocations))
	}
	for i, inv := range invocations {
		if inv.Seed != int64(i+1) {
			t.Errorf("invocation %d seed = %d, want %d", i, inv.Seed, i+1)
		}
		if !inv.FailFast || inv.Filter != "" {
			t.Errorf("invocation %d = %+v, want unfiltered fail-fast run", i, inv)
		}
	}
}

func TestRun_ResumesFromCheckpoint(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	argsLog := filepath.Join(dir, "args.log")
	recordPath := filepath.Join(dir, "state.json")
	env := fakerunner.Env([]string{"A", "B", "C", "D"}, []string{"C"})
	env[fakerunner.EnvArgsLog] = argsLog
	cfgPath := writeConfig(t, env)

	stored := record.New(record.Summary{RunSpecNames: []string{"A", "B", "C", "D"}, Failed: true},
		[]string{"runner"}, nil, 1)
	if err := checkpoint.New(recordPath).Save(stored); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runCLI(t, "--config", cfgPath, "--record", recordPath, "--shuffle-seed", "3", "-q")
	if code != errors.ExitRootCaused {
		t.Fatalf("exit code = %d, want %d\nstderr:\n%s", code, errors.ExitRootCaused, stderr)
	}
	if !strings.Contains(lastLine(stdout), "'--filter=^(C)$'") {
		t.Errorf("reproducer = %q, want filter for C", lastLine(stdout))
	}
	for i, inv := range readArgsLog(t, argsLog) {
		if inv.Filter == "" {
			t.Errorf("invocation %d ran unfiltered; the stored record should skip the search for a failure", i)
		}
	}
}

func TestRun_CorruptCheckpointIsIgnored(t *testing.T) {
	t.Parallel()
	recordPath := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(recordPath, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	cfgPath := writeConfig(t, fakerunner.Env([]string{"A", "B"}, []string{"A"}))

	code, _, stderr := runCLI(t, "--config", cfgPath, "--record", recordPath, "-q")
	if code != errors.ExitRootCaused {
		t.Fatalf("exit code = %d, want %d\nstderr:\n%s", code, errors.ExitRootCaused, stderr)
	}
	if !strings.Contains(stderr, "ignoring unreadable checkpoint") {
		t.Errorf("stderr = %q, want corrupt checkpoint warning", stderr)
	}
}

func TestRun_UnreadableCheckpointIsIgnored(t *testing.T) {
	t.Parallel()
	// A directory where the checkpoint file should be can be neither read nor replaced.
	recordPath := t.TempDir()
	cfgPath := writeConfig(t, fakerunner.Env([]string{"A", "B"}, []string{"A"}))

	code, stdout, stderr := runCLI(t, "--config", cfgPath, "--record", recordPath, "-q")
	if code != errors.ExitRootCaused {
		t.Fatalf("exit code = %d, want %d\nstderr:\n%s", code, errors.ExitRootCaused, stderr)
	}
	if !strings.Contains(stderr, "ignoring unreadable checkpoint") {
		t.Errorf("stderr = %q, want unreadable checkpoint warning", stderr)
	}
	if !strings.Contains(stderr, "failed to save checkpoint") {
		t.Errorf("stderr = %q, want save warning", stderr)
	}
	if !strings.Contains(stdout, "'--filter=^(A)$'") {
		t.Errorf("stdout = %q, want reproducer for A", stdout)
	}
}

func TestRun_BuildRunsOnce(t *testing.T) {
	t.Parallel()
	marker := filepath.Join(t.TempDir(), "build.log")
	data, err := yaml.Marshal(map[string]any{
		"command": fakerunner.Command(),
		"build":   fakerunner.BuildCommand(marker),
		"env":     fakerunner.Env([]string{"A", "B", "C"}, []string{"B"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(t.TempDir(), "deflake.yaml")
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := runCLI(t, "--config", cfgPath, "-q")
	if code != errors.ExitRootCaused {
		t.Fatalf("exit code = %d\nstderr:\n%s", code, stderr)
	}
	content, err := os.ReadFile(marker)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(content), "build"); n != 1 {
		t.Errorf("build ran %d times, want 1", n)
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()
	contract := fakerunner.Env([]string{"A"}, nil)
	contract[fakerunner.EnvMode] = "no-summary"
	contractCfg := writeConfig(t, contract)

	missingCfg := filepath.Join(t.TempDir(), "missing.yaml")
	runnerMissing := filepath.Join(t.TempDir(), "deflake.yaml")
	if err := os.WriteFile(runnerMissing, []byte("command: [deflake-definitely-not-a-real-runner]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{"zero tries", []string{"--try", "0"}, "--try must be at least 1"},
		{"quiet and verbose", []string{"-q", "-v"}, "mutually exclusive"},
		{"bad shuffle seed", []string{"--shuffle-seed", "x"}, "invalid --shuffle-seed"},
		{"unknown flag", []string{"--bogus"}, "try --help"},
		{"missing config", []string{"--config", missingCfg}, "invalid configuration"},
		{"runner missing", []string{"--config", runnerMissing, "-q"}, "failed to start test command"},
		{"contract violation", []string{"--config", contractCfg, "-q"}, "crashed before writing a summary"},
		{"missing trace", []string{"trace", filepath.Join(t.TempDir(), "none")}, "cannot read trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, stdout, stderr := runCLI(t, tt.args...)
			if code != errors.ExitGenericFailure {
				t.Errorf("exit code = %d, want %d", code, errors.ExitGenericFailure)
			}
			if !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want to contain %q", stderr, tt.wantStderr)
			}
			if stdout != "" {
				t.Errorf("stdout = %q, want empty", stdout)
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	t.Parallel()
	code, stdout, stderr := runCLI(t, "--version")
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout+stderr, Version) {
		t.Errorf("output = %q, want version", stdout+stderr)
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{0, "0 invocations"},
		{1, "1 invocation"},
		{2, "2 invocations"},
		{1500, "1,500 invocations"},
	}

	for _, tt := range tests {
		if got := formatCount(tt.n, "invocation"); got != tt.expected {
			t.Errorf("formatCount(%d) = %q, want %q", tt.n, got, tt.expected)
		}
	}
}

func TestValidateRunOptions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		opts    runOptions
		wantErr bool
	}{
		{"defaults", runOptions{Tries: DefaultTries}, false},
		{"one try", runOptions{Tries: 1}, false},
		{"negative tries", runOptions{Tries: -1}, true},
		{"seed", runOptions{Tries: 1, ShuffleSeed: "18446744073709551615"}, false},
		{"negative seed", runOptions{Tries: 1, ShuffleSeed: "-1"}, true},
		{"verbose", runOptions{Tries: 1, Verbose: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRunOptions(&tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRunOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.KindConfig) {
				t.Errorf("error kind = %v, want config", err)
			}
		})
	}
}

type invocation struct {
	Seed     int64  `json:"seed"`
	FailFast bool   `json:"failFast"`
	Filter   string `json:"filter"`
}

func readArgsLog(t *testing.T, path string) []invocation {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", path, err)
	}
	defer func() { _ = f.Close() }()
	var out []invocation
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var inv invocation
		if err := json.Unmarshal(sc.Bytes(), &inv); err != nil {
			t.Fatal(err)
		}
		out = append(out, inv)
	}
	return out
}
