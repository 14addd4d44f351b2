// Package mocks provides shared test doubles for deflake packages.
package mocks

import (
	"context"
	"math/rand/v2"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/AndreyAkinshin/deflake/internal/oracle"
	"github.com/AndreyAkinshin/deflake/internal/record"
)

// Oracle simulates a test runner in memory.
// Use NewOracle() to create instances with a fluent builder API.
//
// By default it runs its tests in declaration order, honours the request
// filter and reports a failure once every culprit has run. With no culprits
// every run passes.
type Oracle struct {
	tests       []string
	culprits    []string
	shuffle     bool
	passingRuns int
	failOnCall  int
	failWith    error
	extraEnv    map[string]string
	baseCommand []string

	// InvokeFunc replaces the simulated runner when set.
	InvokeFunc func(ctx context.Context, req oracle.Request) (*record.Record, error)

	// Invocation tracking (thread-safe)
	invokeCount int32
	mu          sync.Mutex
	requests    []oracle.Request
}

// NewOracle creates a mock oracle over the given test identifiers.
func NewOracle(tests ...string) *Oracle {
	return &Oracle{
		tests:       tests,
		baseCommand: []string{"mock-runner"},
	}
}

// WithCulprits sets the tests that together cause a failure.
func (m *Oracle) WithCulprits(culprits ...string) *Oracle {
	m.culprits = culprits
	return m
}

// WithShuffle makes the run order depend on the request seed.
func (m *Oracle) WithShuffle() *Oracle {
	m.shuffle = true
	return m
}

// WithPassingRuns makes the first n invocations pass regardless of culprits.
func (m *Oracle) WithPassingRuns(n int) *Oracle {
	m.passingRuns = n
	return m
}

// WithErrorOn makes the n-th invocation (1-based) return err.
func (m *Oracle) WithErrorOn(n int, err error) *Oracle {
	m.failOnCall = n
	m.failWith = err
	return m
}

// WithExtraEnv sets the extra environment attached to every record.
func (m *Oracle) WithExtraEnv(env map[string]string) *Oracle {
	m.extraEnv = env
	return m
}

// WithCommand sets the command prefix attached to every record.
func (m *Oracle) WithCommand(cmd ...string) *Oracle {
	m.baseCommand = cmd
	return m
}

// WithInvokeFunc sets the function called by Invoke.
func (m *Oracle) WithInvokeFunc(fn func(ctx context.Context, req oracle.Request) (*record.Record, error)) *Oracle {
	m.InvokeFunc = fn
	return m
}

// Invoke implements the oracle used by the finder and the shrinker.
func (m *Oracle) Invoke(ctx context.Context, req oracle.Request) (*record.Record, error) {
	n := int(atomic.AddInt32(&m.invokeCount, 1))
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.failWith != nil && n == m.failOnCall {
		return nil, m.failWith
	}
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, req)
	}
	return m.simulate(n, req)
}

func (m *Oracle) simulate(n int, req oracle.Request) (*record.Record, error) {
	var re *regexp.Regexp
	if req.Filter != "" {
		var err error
		if re, err = regexp.Compile(req.Filter); err != nil {
			return nil, err
		}
	}

	order := append([]string(nil), m.tests...)
	if m.shuffle {
		r := rand.New(rand.NewPCG(uint64(req.Seed), 0))
		r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	remaining := make(map[string]bool, len(m.culprits))
	for _, c := range m.culprits {
		remaining[c] = true
	}
	canFail := len(m.culprits) > 0 && n > m.passingRuns

	summary := record.Summary{RunSpecNames: []string{}}
	for _, name := range order {
		if re != nil && !re.MatchString(name) {
			continue
		}
		summary.RunSpecNames = append(summary.RunSpecNames, name)
		delete(remaining, name)
		if canFail && len(remaining) == 0 && !summary.Failed {
			summary.Failed = true
			if req.FailFast {
				break
			}
		}
	}

	return record.New(summary, m.command(req), m.extraEnv, req.Seed), nil
}

func (m *Oracle) command(req oracle.Request) []string {
	cmd := append([]string(nil), m.baseCommand...)
	cmd = append(cmd, "--seed="+strconv.FormatInt(req.Seed, 10))
	if req.FailFast {
		cmd = append(cmd, "--fail-fast")
	}
	if req.Filter != "" {
		cmd = append(cmd, "--filter="+req.Filter)
	}
	return cmd
}

// Test inspection methods

// InvokeCount returns the number of times Invoke was called.
func (m *Oracle) InvokeCount() int {
	return int(atomic.LoadInt32(&m.invokeCount))
}

// Requests returns the requests passed to Invoke, in order.
func (m *Oracle) Requests() []oracle.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]oracle.Request, len(m.requests))
	copy(result, m.requests)
	return result
}

// Reset clears invocation tracking state.
func (m *Oracle) Reset() {
	atomic.StoreInt32(&m.invokeCount, 0)
	m.mu.Lock()
	m.requests = nil
	m.mu.Unlock()
}
