// Package session holds the per-run state shared by every oracle invocation:
// a private scratch directory and the counters used to name summary files and
// to hand out runner seeds.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Session is created once per deflake run and must be closed on every exit path.
// It is not safe for concurrent use; deflake runs one oracle invocation at a time.
type Session struct {
	id       string
	dir      string
	nextFile int
	nextSeed int64
}

// New creates a session with a fresh scratch directory under parent
// (os.TempDir() when empty). Seeds start at firstSeed.
func New(parent string, firstSeed int64) (*Session, error) {
	id := uuid.NewString()
	dir, err := os.MkdirTemp(parent, "deflake-"+id[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Session{
		id:       id,
		dir:      dir,
		nextFile: 1,
		nextSeed: firstSeed,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Dir returns the scratch directory.
func (s *Session) Dir() string {
	return s.dir
}

// NewSummaryPath returns a path in the scratch directory that no earlier call
// returned. The file itself is not created.
func (s *Session) NewSummaryPath() string {
	n := s.nextFile
	s.nextFile++
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", n))
}

// NewSeed returns a seed that no earlier call returned.
func (s *Session) NewSeed() int64 {
	seed := s.nextSeed
	s.nextSeed++
	return seed
}

// Close removes the scratch directory and everything in it.
func (s *Session) Close() error {
	return os.RemoveAll(s.dir)
}
