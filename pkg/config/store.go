package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/itohio/filscale/pkg/controller"
	"github.com/itohio/filscale/pkg/scale"
)

// FileStore keeps calibration parameters in the yaml configuration file.
// It owns a private copy of the configuration so the controller can save
// from its own goroutine while the caller keeps using the original.
type FileStore struct {
	mu       sync.Mutex
	cfg      *Config
	filename string
}

var _ controller.Store = (*FileStore)(nil)

// NewStore returns a store seeded with a copy of cfg that writes to
// filename. An empty filename keeps changes in memory only.
func NewStore(cfg *Config, filename string) *FileStore {
	return &FileStore{cfg: cfg.Clone(), filename: filename}
}

// Load returns the stored parameters.
func (s *FileStore) Load() (scale.Params, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Params(), nil
}

// Save updates the stored parameters and writes them out. Sections other
// than the calibration are taken from the file when it exists, so settings
// saved elsewhere in the meantime are kept.
func (s *FileStore) Save(p scale.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.SetParams(p)
	if s.filename == "" {
		return nil
	}

	out := s.cfg
	if _, err := os.Stat(s.filename); err == nil {
		cur, err := Load(s.filename)
		if err != nil {
			return fmt.Errorf("failed to store calibration: %w", err)
		}
		cur.SetParams(p)
		out = cur
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to store calibration: %w", err)
	}

	if err := out.Save(s.filename); err != nil {
		return fmt.Errorf("failed to store calibration: %w", err)
	}
	return nil
}
