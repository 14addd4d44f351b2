// Package process runs external commands to completion, streaming their output
// while keeping its tail for diagnostics.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// DefaultTailSize is the number of trailing output bytes kept by Run.
const DefaultTailSize = 64 * 1024

// Spec describes one command execution.
type Spec struct {
	Args []string // Args[0] is the program
	Env  []string // Full environment; nil inherits the current process environment
	Dir  string
	// Stream receives the combined stdout and stderr as it is produced.
	// Nil discards it.
	Stream   io.Writer
	TailSize int
}

// Result is the outcome of a command that was started and exited.
// A non-zero ExitStatus is a normal outcome, not an error.
type Result struct {
	ExitStatus int // -1 when terminated by a signal
	Output     string
}

// Run executes the command and waits for it to exit.
// It returns an error only when the command could not be run at all or the
// context was cancelled; the command's own exit status is reported in Result.
func Run(ctx context.Context, spec Spec) (*Result, error) {
	if len(spec.Args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, spec.Args[0], spec.Args[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	size := spec.TailSize
	if size <= 0 {
		size = DefaultTailSize
	}
	tail := newTailBuffer(size)
	var w io.Writer = tail
	if spec.Stream != nil {
		w = io.MultiWriter(spec.Stream, tail)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	err := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	result := &Result{Output: tail.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
		result.ExitStatus = exitErr.ExitCode()
		return result, nil
	}
	result.ExitStatus = cmd.ProcessState.ExitCode()
	return result, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.max {
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)
		return n, nil
	}
	if overflow := len(t.buf) + len(p) - t.max; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
