// Package filter builds identifier filters that restrict a test run to an
// explicitly named set of tests.
package filter

import (
	"regexp"
	"strings"
)

// Flag is the command-line prefix of the filter argument.
const Flag = "--filter="

// Make returns a regular expression matching exactly the given identifiers.
// Each identifier is escaped so it matches literally, and the alternation is
// anchored so that no identifier matches as a substring of another.
func Make(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = regexp.QuoteMeta(id)
	}
	return "^(" + strings.Join(quoted, "|") + ")$"
}

// Arg returns the filter argument for the given identifiers.
func Arg(ids []string) string {
	return Flag + Make(ids)
}

// Replace returns a copy of command whose first filter argument is replaced by
// a filter over ids. The filter is appended when command has none.
func Replace(command []string, ids []string) []string {
	out := make([]string, len(command), len(command)+1)
	copy(out, command)
	arg := Arg(ids)
	for i, c := range out {
		if strings.HasPrefix(c, Flag) {
			out[i] = arg
			return out
		}
	}
	return append(out, arg)
}
