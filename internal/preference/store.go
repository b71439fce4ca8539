// Package preference persists the few user settings feedtrack keeps locally.
package preference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/Tiliavir/feedtrack/internal/timecalc"
)

const (
	// ReferenceDateKey holds the calendar date of day 1.
	ReferenceDateKey = "day1Date"
	// DefaultReferenceDate is used until the user saves their own.
	DefaultReferenceDate = "2025-07-28"
)

// ErrInvalidDate is returned when a reference date is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid reference date")

// Store is a string key/value file. Writes replace the file atomically.
type Store struct {
	path string
	mu   sync.Mutex
}

// DefaultPath returns ~/.feedtrack/preferences.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".feedtrack", "preferences.json"), nil
}

// Open returns a store backed by path. The file is created on first write.
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("preference error reading %s: %w", s.path, err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		// Back up corrupt file and abort.
		backupPath := s.path + ".corrupt"
		_ = os.Rename(s.path, backupPath)
		return nil, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", s.path, backupPath, err)
	}
	return values, nil
}

func (s *Store) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("preference error creating directories: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("preference error marshalling JSON: %w", err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("preference error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("preference error renaming temp file: %w", err)
	}
	return nil
}

// Get returns the value stored under key and whether it was present.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set stores value under key, keeping other keys intact.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

// ReferenceDate returns the saved day 1 date. On first use the default is
// written so the file documents the value in effect.
func (s *Store) ReferenceDate() (string, error) {
	v, ok, err := s.Get(ReferenceDateKey)
	if err != nil {
		return DefaultReferenceDate, err
	}
	if ok {
		return v, nil
	}
	if err := s.Set(ReferenceDateKey, DefaultReferenceDate); err != nil {
		return DefaultReferenceDate, err
	}
	return DefaultReferenceDate, nil
}

// SetReferenceDate validates and saves the day 1 date.
func (s *Store) SetReferenceDate(date string) error {
	if _, err := timecalc.ParseDate(date, time.UTC); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	return s.Set(ReferenceDateKey, date)
}
