package config

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNoConfigFile is returned when no DefaultFile exists in the directory or
// any of its parents.
var ErrNoConfigFile = errors.New(DefaultFile + " not found in the working directory or any parent up to the root")

// FindFile walks up from the current working directory until it finds DefaultFile.
func FindFile() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindFileFrom(cwd)
}

// FindFileFrom walks up from the given directory until it finds DefaultFile.
func FindFileFrom(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		path := filepath.Join(dir, DefaultFile)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", ErrNoConfigFile
		}
		dir = parent
	}
}
