// Package shrink implements the randomized search that first reproduces a
// failing run and then repeatedly halves its executed tests while the failure
// persists.
package shrink

import (
	"context"
	"io"
	"log/slog"

	"github.com/AndreyAkinshin/deflake/internal/errors"
	"github.com/AndreyAkinshin/deflake/internal/oracle"
	"github.com/AndreyAkinshin/deflake/internal/record"
	"github.com/AndreyAkinshin/deflake/internal/trace"
)

// Oracle runs the test suite once.
type Oracle interface {
	Invoke(ctx context.Context, req oracle.Request) (*record.Record, error)
}

// Store persists the best failing record.
type Store interface {
	Save(rec *record.Record) error
	Load() (*record.Record, error)
}

// Tracer records every invocation made by the search.
type Tracer interface {
	Append(e trace.Entry) error
}

// SeedSource hands out runner seeds that are never reused.
type SeedSource interface {
	NewSeed() int64
}

// Options holds the optional collaborators shared by Finder and Shrinker.
// Nil fields disable the corresponding feature.
type Options struct {
	Store  Store
	Trace  Tracer
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// checkpoint saves rec when a store is configured. Persistence is advisory,
// so a failed save is only reported.
func (o Options) checkpoint(rec *record.Record) {
	if o.Store == nil {
		return
	}
	if err := o.Store.Save(rec); err != nil {
		o.logger().Warn("failed to save checkpoint", "error", err)
		return
	}
	o.logger().Debug("checkpoint saved", "record", rec.ID, "size", rec.Len())
}

func (o Options) trace(e trace.Entry) error {
	if o.Trace == nil {
		return nil
	}
	if err := o.Trace.Append(e); err != nil {
		return errors.Wrap(err, "failed to append to trace")
	}
	return nil
}

// Finder looks for a first failing run.
type Finder struct {
	oracle Oracle
	seeds  SeedSource
	opts   Options
}

// NewFinder creates a Finder.
func NewFinder(o Oracle, seeds SeedSource, opts Options) *Finder {
	return &Finder{oracle: o, seeds: seeds, opts: opts}
}

// Find returns a failing record, or nil when none of maxAttempts full runs
// failed. A record already held by the store is returned without running
// anything; a store that cannot be read is ignored. Oracle errors are
// returned unchanged.
func (f *Finder) Find(ctx context.Context, maxAttempts int) (*record.Record, error) {
	logger := f.opts.logger()

	if f.opts.Store != nil {
		rec, err := f.opts.Store.Load()
		switch {
		case err != nil:
			logger.Warn("ignoring unreadable checkpoint", "error", err)
		case rec != nil:
			logger.Info("resuming from checkpoint", "record", rec.ID, "size", rec.Len())
			return rec, nil
		}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req := oracle.Request{Seed: f.seeds.NewSeed(), FailFast: true}
		logger.Info("looking for a failing run", "attempt", attempt, "max_attempts", maxAttempts, "seed", req.Seed)

		rec, err := f.oracle.Invoke(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := f.opts.trace(trace.Entry{Phase: trace.PhaseFind, Round: attempt, Record: rec}); err != nil {
			return nil, err
		}
		if rec.Failed {
			logger.Info("found a failing run", "attempt", attempt, "size", rec.Len())
			f.opts.checkpoint(rec)
			return rec, nil
		}
	}
	return nil, nil
}
