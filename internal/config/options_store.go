package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// OptionsRecordName is the single persisted record holding stitch options.
const OptionsRecordName = "options.json"

// OptionsStore persists the stitch options record.
type OptionsStore interface {
	// Read returns the stored options, or false when absent or undecodable.
	Read() (Options, bool)
	Write(Options) error
	// Update applies fn to the current options, or the defaults, and
	// stores the result. No other update can interleave.
	Update(fn func(Options) (Options, error)) (Options, error)
}

// FileOptionsStore keeps the options record in one JSON file, guarded by a
// lock file so the desktop app and the CLI can share it.
type FileOptionsStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileOptionsStore creates a store for the record inside dir.
func NewFileOptionsStore(dir string, logger zerolog.Logger) *FileOptionsStore {
	path := filepath.Join(dir, OptionsRecordName)
	return &FileOptionsStore{
		path:   path,
		logger: logger,
	}
}

// LockPath returns the lock file guarding the record.
func (s *FileOptionsStore) LockPath() string {
	return s.path + ".lock"
}

// newLock returns a lock with its own descriptor. flock state belongs to
// the open file, so sharing one *flock.Flock across callers would let an
// exclusive Lock upgrade a concurrent reader's shared lock in place.
func (s *FileOptionsStore) newLock() *flock.Flock {
	return flock.New(s.LockPath())
}

// Path returns the record location.
func (s *FileOptionsStore) Path() string {
	return s.path
}

// Read loads and decodes the record. Failures are logged, never returned.
func (s *FileOptionsStore) Read() (Options, bool) {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return Options{}, false
	}
	lock := s.newLock()
	if err := lock.RLock(); err != nil {
		s.logger.Debug().Err(err).Str("path", s.path).Msg("lock options record")
		return Options{}, false
	}
	defer func() { _ = lock.Unlock() }()

	return s.readLocked()
}

func (s *FileOptionsStore) readLocked() (Options, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug().Err(err).Str("path", s.path).Msg("read options record")
		}
		return Options{}, false
	}

	opts, err := UnmarshalOptions(data)
	if err != nil {
		s.logger.Debug().Err(err).Str("path", s.path).Msg("decode options record")
		return Options{}, false
	}
	return opts, true
}

// Write replaces the record atomically.
func (s *FileOptionsStore) Write(opts Options) error {
	_, err := s.Update(func(Options) (Options, error) { return opts, nil })
	return err
}

// Update holds the exclusive lock across reading, fn and writing.
func (s *FileOptionsStore) Update(fn func(Options) (Options, error)) (Options, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Options{}, fmt.Errorf("create options directory: %w", err)
	}
	lock := s.newLock()
	if err := lock.Lock(); err != nil {
		return Options{}, fmt.Errorf("lock options record: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	current, ok := s.readLocked()
	if !ok {
		current = DefaultOptions()
	}
	next, err := fn(current)
	if err != nil {
		return Options{}, err
	}
	data, err := next.Marshal()
	if err != nil {
		return Options{}, err
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return Options{}, fmt.Errorf("write options record: %w", err)
	}
	return next, nil
}

// LoadOptions returns the persisted options or the defaults.
func LoadOptions(store OptionsStore) Options {
	if store == nil {
		return DefaultOptions()
	}
	if opts, ok := store.Read(); ok {
		return opts
	}
	return DefaultOptions()
}
