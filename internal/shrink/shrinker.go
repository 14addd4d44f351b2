package shrink

import (
	"context"
	"math/rand/v2"
	"slices"

	"github.com/AndreyAkinshin/deflake/internal/filter"
	"github.com/AndreyAkinshin/deflake/internal/oracle"
	"github.com/AndreyAkinshin/deflake/internal/record"
	"github.com/AndreyAkinshin/deflake/internal/trace"
)

// Shrinker reduces a failing record to a smaller set of tests that still fails.
type Shrinker struct {
	oracle      Oracle
	seeds       SeedSource
	maxAttempts int
	shuffleSeed uint64
	rng         *rand.Rand
	opts        Options
}

// NewShrinker creates a Shrinker that gives up on a set after maxAttempts
// rounds without a failing half. Partitions are drawn from a generator seeded
// with shuffleSeed, so the same seed and oracle answers give the same search.
func NewShrinker(o Oracle, seeds SeedSource, maxAttempts int, shuffleSeed uint64, opts Options) *Shrinker {
	return &Shrinker{
		oracle:      o,
		seeds:       seeds,
		maxAttempts: maxAttempts,
		shuffleSeed: shuffleSeed,
		rng:         rand.New(rand.NewPCG(shuffleSeed, 0)),
		opts:        opts,
	}
}

// Shrink runs the search from initial, which must describe a failing run.
//
// Each round splits the current tests into two random halves and runs each
// half on its own. The first half that fails and ran fewer tests than the
// current set replaces it and the round counter restarts. The search ends when
// a single test remains or maxAttempts rounds pass without a replacement.
//
// On error the best record found so far is returned alongside it.
func (s *Shrinker) Shrink(ctx context.Context, initial *record.Record) (*record.Record, error) {
	logger := s.opts.logger()
	logger.Info("shrinking", "size", initial.Len(), "shuffle_seed", s.shuffleSeed)

	current := initial
	for current.Len() > 1 {
		next, err := s.reduce(ctx, current)
		if err != nil {
			return current, err
		}
		if next == nil {
			logger.Info("no smaller failing set found", "size", current.Len(), "rounds", s.maxAttempts)
			break
		}
		logger.Info("adopted smaller failing set", "from", current.Len(), "to", next.Len())
		s.opts.checkpoint(next)
		current = next
	}
	return current, nil
}

// reduce looks for a failing proper subset of current. It returns nil when
// none was found within the round budget.
func (s *Shrinker) reduce(ctx context.Context, current *record.Record) (*record.Record, error) {
	logger := s.opts.logger()
	splitPoint := current.Len() / 2

	for round := 1; round <= s.maxAttempts; round++ {
		perm := slices.Clone(current.RunSpecNames)
		s.rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

		parts := []struct {
			name  string
			names []string
		}{
			{trace.PartFirst, perm[:splitPoint]},
			{trace.PartSecond, perm[splitPoint:]},
		}
		for _, part := range parts {
			req := oracle.Request{
				Seed:     s.seeds.NewSeed(),
				Filter:   filter.Make(part.names),
				FailFast: true,
			}
			logger.Debug("trying part", "round", round, "part", part.name, "size", len(part.names), "seed", req.Seed)

			rec, err := s.oracle.Invoke(ctx, req)
			if err != nil {
				return nil, err
			}
			err = s.opts.trace(trace.Entry{
				Phase:       trace.PhaseShrink,
				Round:       round,
				Part:        part.name,
				ShuffleSeed: s.shuffleSeed,
				Requested:   part.names,
				Record:      rec,
			})
			if err != nil {
				return nil, err
			}

			if rec.Failed && rec.Len() > 0 && rec.Len() < current.Len() {
				return rec, nil
			}
		}
		logger.Info("round did not reproduce", "round", round, "max_attempts", s.maxAttempts, "size", current.Len())
	}
	return nil, nil
}
