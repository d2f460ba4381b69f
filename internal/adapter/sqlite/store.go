package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/weather-sync-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_state (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	state      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// Store implements pipeline.StateStore as a single-row SQLite table. The
// upsert is one statement, so readers never see a partial value.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle. Call Migrate before use.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate applies connection pragmas and creates the state table.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		schema,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Read returns the persisted state, or ok=false before the first write.
func (s *Store) Read(ctx context.Context) (domain.SyncState, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM sync_state WHERE id = 1`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}

	state, err := domain.ParseSyncState(value)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	return state, true, nil
}

// Write upserts the single state row.
func (s *Store) Write(ctx context.Context, state domain.SyncState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, state, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, string(state), domain.Now())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	s.logger.Debug("state persisted", "backend", "sqlite", "state", state)
	return nil
}

// UpdatedAt returns when the state row was last written.
func (s *Store) UpdatedAt(ctx context.Context) (time.Time, bool, error) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM sync_state WHERE id = 1`).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	return ts, true, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
