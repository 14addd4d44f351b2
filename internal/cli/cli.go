// Package cli provides the deflake command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/AndreyAkinshin/deflake/internal/errors"
	"github.com/AndreyAkinshin/deflake/internal/output"
)

// Version is set at build time.
var Version = "dev"

// DefaultTries is the default attempt budget for both search phases.
const DefaultTries = 10

// runOptions holds the flags of the run command.
type runOptions struct {
	Tries       int
	RecordPath  string
	ConfigPath  string
	TraceDir    string
	ShuffleSeed string
	NoBuild     bool
	LogFile     string
	Verbose     bool
	Quiet       bool
}

// traceOptions holds the arguments of the trace command.
type traceOptions struct {
	Dir string
}

// Run executes the CLI with the given arguments and returns an exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, output.New())
}

// RunWithWriters is Run with explicit output streams and no color.
func RunWithWriters(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, args, output.NewWithWriters(stdout, stderr, false))
}

func run(ctx context.Context, args []string, out *output.Writer) int {
	app := kingpin.New("deflake", "Isolate the tests whose combined execution makes a flaky suite fail.")
	app.Version(Version)
	app.UsageWriter(out.ErrWriter())
	app.ErrorWriter(out.ErrWriter())
	exitCode := -1
	app.Terminate(func(code int) {
		if exitCode < 0 {
			exitCode = code
		}
	})

	var ro runOptions
	app.Flag("log-file", "Also write debug logs as JSON lines to this file.").StringVar(&ro.LogFile)
	app.Flag("verbose", "Show debug progress.").Short('v').BoolVar(&ro.Verbose)
	app.Flag("quiet", "Show warnings and the result only; hide runner output.").Short('q').BoolVar(&ro.Quiet)

	runCmd := app.Command("run", "Find a failing run and shrink it to a minimal set of tests.").Default()
	runCmd.Flag("try", "Attempt budget for finding a failure and for each shrink step.").
		Default(strconv.Itoa(DefaultTries)).IntVar(&ro.Tries)
	runCmd.Flag("record", "Checkpoint file holding the best failing run; resumed from when present. A .zst suffix enables compression.").
		StringVar(&ro.RecordPath)
	runCmd.Flag("config", "Runner configuration file (default: .deflake.yaml when present).").StringVar(&ro.ConfigPath)
	runCmd.Flag("trace", "Directory for a log of every runner invocation.").StringVar(&ro.TraceDir)
	runCmd.Flag("shuffle-seed", "Seed for the random partitions (default: derived from the clock).").StringVar(&ro.ShuffleSeed)
	runCmd.Flag("no-build", "Skip the build command.").BoolVar(&ro.NoBuild)

	var to traceOptions
	traceCmd := app.Command("trace", "Print the invocations recorded in a trace directory.")
	traceCmd.Arg("dir", "Trace directory written by run --trace.").Required().StringVar(&to.Dir)

	cmd, err := app.Parse(args)
	if exitCode >= 0 {
		// --help or --version was handled by kingpin.
		return exitCode
	}
	if err != nil {
		out.ErrorPrefix("%v, try --help", err)
		return errors.ExitGenericFailure
	}

	switch cmd {
	case traceCmd.FullCommand():
		return cmdTrace(out, &to)
	default:
		return cmdRun(ctx, out, &ro)
	}
}

// printError reports a fatal error together with the diagnostics it carries.
func printError(out *output.Writer, err error) {
	out.ErrorPrefix("%v", err)
	var de *errors.Error
	if errors.As(err, &de) && de.Output != "" {
		out.ErrorDetail("output", de.Output)
	}
}

func validateRunOptions(opts *runOptions) error {
	if opts.Tries < 1 {
		return errors.Configf("--try must be at least 1, got %d", opts.Tries)
	}
	if opts.Quiet && opts.Verbose {
		return errors.Config("--quiet and --verbose are mutually exclusive")
	}
	if opts.ShuffleSeed != "" {
		if _, err := strconv.ParseUint(opts.ShuffleSeed, 10, 64); err != nil {
			return errors.Configf("invalid --shuffle-seed %q: must be a non-negative integer", opts.ShuffleSeed)
		}
	}
	return nil
}

var countPrinter = message.NewPrinter(language.English)

// formatCount renders n with digit grouping followed by noun, pluralized.
func formatCount(n int, noun string) string {
	if n != 1 {
		noun += "s"
	}
	return countPrinter.Sprintf("%d %s", n, noun)
}
