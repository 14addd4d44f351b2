// Package record defines the run summary reported by the test runner and the
// replayable run record built around it.
package record

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Summary is the document the test runner writes after a run.
type Summary struct {
	// RunSpecNames lists the identifiers of the tests that executed, in order.
	// Skipped and excluded tests are absent.
	RunSpecNames []string `json:"runSpecNames"`
	Failed       bool     `json:"failed"`
}

// Record is a Summary together with the exact invocation that produced it.
// Records are never mutated once built; a better candidate replaces them.
type Record struct {
	ID string `json:"id,omitempty"`
	Summary
	Command  []string          `json:"command"`
	ExtraEnv map[string]string `json:"extraEnv"`
	Seed     int64             `json:"seed,omitempty"`
}

// New builds a record with a fresh time-ordered ID.
func New(summary Summary, command []string, extraEnv map[string]string, seed int64) *Record {
	id := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7.String()
	}
	return &Record{
		ID:       id,
		Summary:  Summary{RunSpecNames: slices.Clone(summary.RunSpecNames), Failed: summary.Failed},
		Command:  slices.Clone(command),
		ExtraEnv: maps.Clone(extraEnv),
		Seed:     seed,
	}
}

// Len returns the number of executed identifiers.
func (r *Record) Len() int {
	return len(r.RunSpecNames)
}

// Validate checks the summary contract: a failed run must have executed at
// least one test.
func (s Summary) Validate() error {
	if s.Failed && len(s.RunSpecNames) == 0 {
		return fmt.Errorf("summary reports a failure but no test ran")
	}
	return nil
}

// ValidateCandidate checks that a record can serve as a search candidate.
func (r *Record) ValidateCandidate() error {
	if !r.Failed {
		return fmt.Errorf("record does not describe a failing run")
	}
	if len(r.Command) == 0 {
		return fmt.Errorf("record has no command")
	}
	return r.Summary.Validate()
}

// Equal reports whether two records describe the same run.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.ID == other.ID &&
		r.Failed == other.Failed &&
		r.Seed == other.Seed &&
		slices.Equal(r.RunSpecNames, other.RunSpecNames) &&
		slices.Equal(r.Command, other.Command) &&
		maps.Equal(r.ExtraEnv, other.ExtraEnv)
}
