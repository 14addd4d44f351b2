// Package trace keeps a write-ahead log of every oracle invocation made during
// a search, so a run can be inspected or replayed afterwards.
package trace

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/tidwall/wal"

	"github.com/AndreyAkinshin/deflake/internal/record"
)

// Phase identifies the search stage that made an invocation.
type Phase string

const (
	// PhaseFind marks the unfiltered runs made while looking for a first failure.
	PhaseFind Phase = "find"
	// PhaseShrink marks the filtered runs over one part of a shuffled split.
	PhaseShrink Phase = "shrink"
)

// Parts of a shrink round.
const (
	PartFirst  = "first"
	PartSecond = "second"
)

// Entry is one logged invocation.
type Entry struct {
	Phase Phase `json:"phase"`
	// Round counts attempts within the phase, starting at 1. It restarts after
	// every adopted candidate.
	Round       int            `json:"round"`
	Part        string         `json:"part,omitempty"`
	ShuffleSeed uint64         `json:"shuffleSeed,omitempty"`
	Requested   []string       `json:"requested,omitempty"`
	Record      *record.Record `json:"record"`
}

// Log is an append-only trace stored in a directory.
type Log struct {
	nextIndex uint64
	log       *wal.Log
}

// Iterator walks the entries of a Log in append order.
type Iterator struct {
	currentIndex uint64
	stopIndex    uint64
	log          *wal.Log
}

// LoadNext returns the next entry, or io.EOF after the last one.
func (i *Iterator) LoadNext() (*Entry, error) {
	if i.currentIndex == 0 || i.currentIndex > i.stopIndex {
		return nil, io.EOF
	}

	data, err := i.log.Read(i.currentIndex)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not read index %d", i.currentIndex)
	}

	result := &Entry{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, errors.WithMessagef(err, "could not decode entry %d, is the trace corrupt?", i.currentIndex)
	}

	i.currentIndex++

	return result, nil
}

// Open opens the trace in dir, creating it when needed. New entries are
// appended after any existing ones.
func Open(dir string) (*Log, error) {
	log, err := wal.Open(dir, &wal.Options{
		NoSync: true,
		NoCopy: true,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "could not open trace")
	}

	lastIndex, err := log.LastIndex()
	if err != nil {
		log.Close()
		return nil, errors.WithMessage(err, "could not read last index")
	}

	return &Log{
		nextIndex: lastIndex + 1,
		log:       log,
	}, nil
}

// Append writes e to the log and syncs it to disk.
func (l *Log) Append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.WithMessage(err, "could not marshal entry")
	}

	if err := l.log.Write(l.nextIndex, data); err != nil {
		return errors.WithMessagef(err, "could not write index %d", l.nextIndex)
	}
	if err := l.log.Sync(); err != nil {
		return errors.WithMessage(err, "could not sync trace to filesystem")
	}

	l.nextIndex++

	return nil
}

// Len returns the number of entries in the log.
func (l *Log) Len() int {
	return int(l.nextIndex - 1)
}

// Iterator returns an iterator over every entry written so far.
func (l *Log) Iterator() (*Iterator, error) {
	firstIndex, err := l.log.FirstIndex()
	if err != nil {
		return nil, errors.WithMessage(err, "could not read first index")
	}

	lastIndex, err := l.log.LastIndex()
	if err != nil {
		return nil, errors.WithMessage(err, "could not read last index")
	}

	return &Iterator{
		currentIndex: firstIndex,
		stopIndex:    lastIndex,
		log:          l.log,
	}, nil
}

// Entries returns every entry in append order.
func (l *Log) Entries() ([]*Entry, error) {
	i, err := l.Iterator()
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	for {
		next, err := i.LoadNext()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		entries = append(entries, next)
	}
	return entries, nil
}

// Close syncs and closes the log.
func (l *Log) Close() error {
	if err := l.log.Sync(); err != nil {
		l.log.Close()
		return errors.WithMessage(err, "could not sync trace to filesystem")
	}
	return l.log.Close()
}

// ReadAll opens the trace in dir and returns its entries.
func ReadAll(dir string) ([]*Entry, error) {
	l, err := Open(dir)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	return l.Entries()
}
