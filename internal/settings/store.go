package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cycleagent/internal/logger"
)

// Store is the thread-safe, file-backed settings holder shared by the worker
// loop, the CLI and the file watcher.
type Store struct {
	path string

	mu      sync.RWMutex
	current *Settings
	dirty   bool
}

// NewStore creates a store backed by path, holding defaults until Reload.
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		current: Default(),
		dirty:   true,
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the file. A missing file keeps the current settings.
func (s *Store) Reload() error {
	loaded, err := Load(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log := logger.WithComponent("settings")
			log.Debug().
				Str("path", s.path).
				Msg("Settings file not found, keeping current settings")
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.current = loaded
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// Save writes the settings when they changed since the last load or save,
// or unconditionally when force is set.
func (s *Store) Save(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty && !force {
		return nil
	}

	data, err := Marshal(s.current)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	s.dirty = false
	return nil
}

// Update applies fn to a copy of the settings and keeps it when it validates.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	fn(next)
	if err := next.Validate(); err != nil {
		return err
	}
	s.current = next
	s.dirty = true
	return nil
}

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Interval returns the cycle window length.
func (s *Store) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Interval
}

// PostCyclePause returns the pause taken after each cycle.
func (s *Store) PostCyclePause() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.PostCyclePause
}

// InstrumentationKey returns the telemetry key.
func (s *Store) InstrumentationKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.InstrumentationKey
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
