// Package report turns the outcome of a search into the final message, the
// reproducer command and the process exit code.
package report

import (
	"maps"
	"slices"

	"github.com/alessio/shellescape"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/AndreyAkinshin/deflake/internal/errors"
	"github.com/AndreyAkinshin/deflake/internal/filter"
	"github.com/AndreyAkinshin/deflake/internal/output"
	"github.com/AndreyAkinshin/deflake/internal/record"
)

// Outcome is the data-level result of a search.
type Outcome int

const (
	// NoFailure means no attempt reproduced a failure.
	NoFailure Outcome = iota
	// RootCaused means a failing set of tests was isolated.
	RootCaused
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case NoFailure:
		return "no failure"
	case RootCaused:
		return "root caused"
	default:
		return "unknown"
	}
}

// ExitCode returns the process exit code for the outcome.
func (o Outcome) ExitCode() int {
	if o == RootCaused {
		return errors.ExitRootCaused
	}
	return errors.ExitNoFailure
}

// Result is what the search produced.
type Result struct {
	Outcome  Outcome
	Attempts int            // Attempt budget of the search
	Record   *record.Record // Final failing record; nil for NoFailure
}

// NewResult builds the result for a finished search. A nil record means no
// failure was found.
func NewResult(rec *record.Record, attempts int) Result {
	if rec == nil {
		return Result{Outcome: NoFailure, Attempts: attempts}
	}
	return Result{Outcome: RootCaused, Attempts: attempts, Record: rec}
}

// ExitCode returns the process exit code for the result.
func (r Result) ExitCode() int {
	return r.Outcome.ExitCode()
}

// Reproducer returns the command line that reruns exactly the tests of rec:
// its command with the filter narrowed to rec's identifiers, prefixed with
// env assignments for its extra environment sorted by name. Variables named
// in omitEnv are left out.
func Reproducer(rec *record.Record, omitEnv ...string) []string {
	command := filter.Replace(rec.Command, rec.RunSpecNames)

	var assignments []string
	for _, k := range slices.Sorted(maps.Keys(rec.ExtraEnv)) {
		if slices.Contains(omitEnv, k) {
			continue
		}
		assignments = append(assignments, k+"="+rec.ExtraEnv[k])
	}
	if len(assignments) == 0 {
		return command
	}

	args := make([]string, 0, 1+len(assignments)+len(command))
	args = append(args, "env")
	args = append(args, assignments...)
	return append(args, command...)
}

// ReproducerString returns Reproducer quoted for a POSIX shell.
func ReproducerString(rec *record.Record, omitEnv ...string) string {
	return shellescape.QuoteCommand(Reproducer(rec, omitEnv...))
}

// Reporter prints results.
type Reporter struct {
	out     *output.Writer
	printer *message.Printer
	omitEnv []string
}

// New creates a Reporter writing to out. Variables named in omitEnv are left
// out of printed reproducers.
func New(out *output.Writer, omitEnv ...string) *Reporter {
	return &Reporter{
		out:     out,
		printer: message.NewPrinter(language.English),
		omitEnv: omitEnv,
	}
}

// Print writes the final message for r to standard output. The reproducer is
// always the last line.
func (p *Reporter) Print(r Result) {
	switch r.Outcome {
	case NoFailure:
		p.out.FinalSuccess("%s", p.printer.Sprintf("No failure found in %d attempts", r.Attempts))
	case RootCaused:
		title := cases.Title(language.English)
		p.out.SummaryHeader(title.String("isolated specs"))
		p.out.List(r.Record.RunSpecNames)
		p.out.FinalFailure("%s", p.printer.Sprintf("Found %d specs running which results in failure. Command:", r.Record.Len()))
		p.out.Command(ReproducerString(r.Record, p.omitEnv...))
	}
}
