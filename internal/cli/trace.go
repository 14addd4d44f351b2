package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/AndreyAkinshin/deflake/internal/errors"
	"github.com/AndreyAkinshin/deflake/internal/output"
	"github.com/AndreyAkinshin/deflake/internal/trace"
)

func cmdTrace(out *output.Writer, opts *traceOptions) int {
	// Opening a missing directory would create an empty trace.
	if _, err := os.Stat(opts.Dir); err != nil {
		printError(out, errors.WrapConfig(err, "cannot read trace"))
		return errors.ExitGenericFailure
	}

	entries, err := trace.ReadAll(opts.Dir)
	if err != nil {
		printError(out, errors.Wrap(err, "cannot read trace"))
		return errors.ExitGenericFailure
	}

	for i, e := range entries {
		out.Println("%s", formatEntry(i+1, e))
	}
	out.SummaryHeader("Trace")
	out.SummaryItem("Entries", formatCount(len(entries), "invocation"))
	return errors.ExitNoFailure
}

// formatEntry renders one trace entry as a tab-separated line.
func formatEntry(n int, e *trace.Entry) string {
	fields := []string{
		fmt.Sprintf("%d", n),
		string(e.Phase),
		fmt.Sprintf("round=%d", e.Round),
	}
	if e.Part != "" {
		fields = append(fields,
			"part="+e.Part,
			fmt.Sprintf("requested=%d", len(e.Requested)),
			fmt.Sprintf("shuffle_seed=%d", e.ShuffleSeed))
	}
	status := "passed"
	if e.Record.Failed {
		status = "FAILED"
	}
	fields = append(fields,
		fmt.Sprintf("seed=%d", e.Record.Seed),
		fmt.Sprintf("ran=%d", e.Record.Len()),
		status)
	return strings.Join(fields, "\t")
}
