// Package checkpoint persists the best failing record found so far so an
// interrupted search can resume from it.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/AndreyAkinshin/deflake/internal/errors"
	"github.com/AndreyAkinshin/deflake/internal/record"
	"github.com/AndreyAkinshin/deflake/internal/schema"
)

// CompressedSuffix selects zstd compression for a checkpoint path.
const CompressedSuffix = ".zst"

// Store saves and loads a single record at a fixed path.
type Store struct {
	path string
}

// New returns a store for path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the checkpoint path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) compressed() bool {
	return strings.HasSuffix(s.path, CompressedSuffix)
}

// Save replaces the checkpoint with rec. The file is written next to the
// target and renamed into place, so readers never observe a partial record.
func (s *Store) Save(rec *record.Record) (err error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	data = append(data, '\n')
	if s.compressed() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		data = enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return err
		}
	}

	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// Load reads the checkpoint. A missing file yields (nil, nil). A file that
// cannot be decoded or does not describe a failing run is KindRecordCorrupt.
func (s *Store) Load() (*record.Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	if s.compressed() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, errors.RecordCorrupt(s.path, err)
		}
	}

	if err := schema.ValidateRecord(data); err != nil {
		return nil, errors.RecordCorrupt(s.path, err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.RecordCorrupt(s.path, err)
	}
	if err := rec.ValidateCandidate(); err != nil {
		return nil, errors.RecordCorrupt(s.path, err)
	}
	return &rec, nil
}
