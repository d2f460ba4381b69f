// Package statefile persists the last applied sync state in a single text
// file. Writes go to a temporary file in the same directory which is then
// renamed over the slot, so readers see either the old or the new value.
package statefile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/weather-sync-service/internal/domain"
)

// Store implements pipeline.StateStore on top of a file.
type Store struct {
	path   string
	logger *slog.Logger
}

// New creates a file store for path. The file is created on first Write.
func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Read returns the persisted state. A missing or empty file reports
// ok=false with a nil error.
func (s *Store) Read(_ context.Context) (domain.SyncState, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", false, nil
	}
	state, err := domain.ParseSyncState(value)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", domain.ErrStorageRead, s.path, err)
	}
	return state, true, nil
}

// Write atomically replaces the slot with state.
func (s *Store) Write(_ context.Context, state domain.SyncState) error {
	if err := s.write(state); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	s.logger.Debug("state persisted", "path", s.path, "state", state)
	return nil
}

func (s *Store) write(state domain.SyncState) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.WriteString(string(state) + "\n"); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return err
	}
	return syncDir(dir)
}

// syncDir flushes the directory entry so the rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return err
	}
	return d.Close()
}
