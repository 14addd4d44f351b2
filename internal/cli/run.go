package cli

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/AndreyAkinshin/deflake/internal/checkpoint"
	"github.com/AndreyAkinshin/deflake/internal/config"
	"github.com/AndreyAkinshin/deflake/internal/errors"
	"github.com/AndreyAkinshin/deflake/internal/logging"
	"github.com/AndreyAkinshin/deflake/internal/oracle"
	"github.com/AndreyAkinshin/deflake/internal/output"
	"github.com/AndreyAkinshin/deflake/internal/report"
	"github.com/AndreyAkinshin/deflake/internal/session"
	"github.com/AndreyAkinshin/deflake/internal/shrink"
	"github.com/AndreyAkinshin/deflake/internal/trace"
)

// firstSeed is the runner seed of the first invocation in a session.
const firstSeed = 1

func cmdRun(ctx context.Context, out *output.Writer, opts *runOptions) int {
	if err := validateRunOptions(opts); err != nil {
		printError(out, err)
		return errors.GetExitCode(err)
	}
	out.SetQuiet(opts.Quiet)

	logOpts := logging.Options{
		Terminal: out.ErrWriter(),
		Level:    logging.LevelFor(opts.Verbose, opts.Quiet),
	}
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			printError(out, errors.WrapConfig(err, "failed to open log file"))
			return errors.ExitGenericFailure
		}
		defer func() { _ = f.Close() }()
		logOpts.File = f
	}
	logger := logging.New(logOpts)

	cfg, warnings, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		printError(out, errors.WrapConfig(err, "invalid configuration"))
		return errors.ExitGenericFailure
	}
	for _, w := range warnings {
		out.Warning("%s", w)
	}

	shuffleSeed := uint64(time.Now().UnixNano())
	if opts.ShuffleSeed != "" {
		shuffleSeed, _ = strconv.ParseUint(opts.ShuffleSeed, 10, 64)
	}

	sess, err := session.New("", firstSeed)
	if err != nil {
		printError(out, errors.Wrap(err, "failed to start session"))
		return errors.ExitGenericFailure
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("failed to remove session directory", "dir", sess.Dir(), "error", err)
		}
	}()
	logger.Info("starting",
		"session", sess.ID(),
		"tries", opts.Tries,
		"shuffle_seed", shuffleSeed,
		"command", cfg.Command)

	invOpts := []oracle.Option{oracle.WithStream(out.Stream()), oracle.WithLogger(logger)}
	if opts.NoBuild {
		invOpts = append(invOpts, oracle.WithoutBuild())
	}
	invoker := oracle.New(cfg, sess, invOpts...)

	searchOpts := shrink.Options{Logger: logger}
	if opts.RecordPath != "" {
		searchOpts.Store = checkpoint.New(opts.RecordPath)
	}
	if opts.TraceDir != "" {
		tl, err := trace.Open(opts.TraceDir)
		if err != nil {
			printError(out, errors.Wrap(err, "failed to open trace"))
			return errors.ExitGenericFailure
		}
		defer func() {
			if err := tl.Close(); err != nil {
				logger.Warn("failed to close trace", "error", err)
			}
		}()
		searchOpts.Trace = tl
	}

	rec, err := shrink.NewFinder(invoker, sess, searchOpts).Find(ctx, opts.Tries)
	if err != nil {
		printError(out, err)
		return errors.GetExitCode(err)
	}
	if rec != nil {
		best, err := shrink.NewShrinker(invoker, sess, opts.Tries, shuffleSeed, searchOpts).Shrink(ctx, rec)
		if err != nil {
			logger.Warn("search aborted", "best_size", best.Len(),
				"reproducer", report.ReproducerString(best, cfg.SummaryEnv))
			printError(out, err)
			return errors.GetExitCode(err)
		}
		rec = best
	}

	result := report.NewResult(rec, opts.Tries)
	report.New(out, cfg.SummaryEnv).Print(result)
	return result.ExitCode()
}
