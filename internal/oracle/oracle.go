// Package oracle runs the external test runner once per request and reads back
// the summary it reports.
package oracle

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/AndreyAkinshin/deflake/internal/config"
	"github.com/AndreyAkinshin/deflake/internal/errors"
	"github.com/AndreyAkinshin/deflake/internal/process"
	"github.com/AndreyAkinshin/deflake/internal/record"
	"github.com/AndreyAkinshin/deflake/internal/schema"
	"github.com/AndreyAkinshin/deflake/internal/session"
)

// Request describes one runner invocation.
type Request struct {
	Seed     int64
	Filter   string // Empty runs every test
	FailFast bool
}

// Invoker runs the configured test runner.
// It is not safe for concurrent use: invocations are strictly sequential.
type Invoker struct {
	cfg       *config.Config
	sess      *session.Session
	stream    io.Writer
	logger    *slog.Logger
	skipBuild bool
	prepared  bool
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithStream sets where runner and build output is streamed.
func WithStream(w io.Writer) Option {
	return func(i *Invoker) { i.stream = w }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Invoker) { i.logger = l }
}

// WithoutBuild skips the build step.
func WithoutBuild() Option {
	return func(i *Invoker) { i.skipBuild = true }
}

// New creates an Invoker whose summary files live in the session directory.
func New(cfg *config.Config, sess *session.Session, opts ...Option) *Invoker {
	i := &Invoker{
		cfg:    cfg,
		sess:   sess,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Prepare runs the build command once per Invoker. Later calls are no-ops.
// A build that cannot start or exits non-zero is an infrastructure failure.
func (i *Invoker) Prepare(ctx context.Context) error {
	if i.prepared {
		return nil
	}
	i.prepared = true
	if i.skipBuild || len(i.cfg.Build) == 0 {
		return nil
	}

	i.logger.Info("building tests", "command", i.cfg.Build)
	result, err := process.Run(ctx, process.Spec{
		Args:   i.cfg.Build,
		Env:    mergeEnv(os.Environ(), i.cfg.Env),
		Dir:    i.cfg.Dir,
		Stream: i.stream,
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errors.Infrastructure(i.cfg.Build, err, "failed to start build command")
	}
	if result.ExitStatus != 0 {
		return &errors.Error{
			Kind:       errors.KindInfrastructure,
			Message:    "build command failed with exit status " + strconv.Itoa(result.ExitStatus),
			Command:    slices.Clone(i.cfg.Build),
			ExitStatus: result.ExitStatus,
			Output:     result.Output,
		}
	}
	return nil
}

// Command returns the runner command line for a request.
func (i *Invoker) Command(req Request) []string {
	cmd := slices.Clone(i.cfg.Command)
	if i.cfg.ConfigPath != "" {
		cmd = append(cmd, "--config="+i.cfg.ConfigPath)
	}
	cmd = append(cmd, "--seed="+strconv.FormatInt(req.Seed, 10))
	if req.FailFast {
		cmd = append(cmd, "--fail-fast")
	}
	if req.Filter != "" {
		cmd = append(cmd, "--filter="+req.Filter)
	}
	return cmd
}

// Invoke runs the runner once and returns the record of the run.
//
// A run whose tests fail is a normal result. An error is returned only when
// the runner could not be started (KindInfrastructure) or did not leave a
// valid summary behind (KindOracleContract).
func (i *Invoker) Invoke(ctx context.Context, req Request) (*record.Record, error) {
	if err := i.Prepare(ctx); err != nil {
		return nil, err
	}

	summaryPath := i.sess.NewSummaryPath()
	extraEnv := maps.Clone(i.cfg.Env)
	if extraEnv == nil {
		extraEnv = map[string]string{}
	}
	extraEnv[i.cfg.SummaryEnv] = summaryPath
	command := i.Command(req)

	i.logger.Debug("invoking test runner", "seed", req.Seed, "fail_fast", req.FailFast, "filter", req.Filter)
	result, err := process.Run(ctx, process.Spec{
		Args:   command,
		Env:    mergeEnv(os.Environ(), extraEnv),
		Dir:    i.cfg.Dir,
		Stream: i.stream,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.Infrastructure(command, err, "failed to start test command")
	}

	summary, err := readSummary(summaryPath)
	if err != nil {
		return nil, errors.OracleContract(command, result.ExitStatus, result.Output, err,
			"test command did not produce a usable summary")
	}
	i.logger.Debug("test runner finished",
		"seed", req.Seed,
		"exit_status", result.ExitStatus,
		"failed", summary.Failed,
		"ran", len(summary.RunSpecNames))

	return record.New(summary, command, extraEnv, req.Seed), nil
}

func readSummary(path string) (record.Summary, error) {
	var summary record.Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return summary, err
	}
	if err := schema.ValidateSummary(data); err != nil {
		return summary, err
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return summary, err
	}
	if err := summary.Validate(); err != nil {
		return summary, err
	}
	return summary, nil
}

// mergeEnv appends extra variables in a stable order. Later entries win in
// os/exec, so extra overrides base.
func mergeEnv(base []string, extra map[string]string) []string {
	env := slices.Clone(base)
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, k+"="+extra[k])
	}
	return env
}
