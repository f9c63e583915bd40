// Package sqlite provides a SQLite-backed state store. Unlike the
// plain file store it keeps every saved snapshot, so a bad run can be
// rolled back to any earlier resume point by hand.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sentry-tap/internal/adapters/driven/state/sqlite/migrations"
	"github.com/custodia-labs/sentry-tap/internal/core/domain"
	"github.com/custodia-labs/sentry-tap/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore is a SQLite-based implementation of driven.StateStore.
type StateStore struct {
	db   *sql.DB
	path string
}

// NewStateStore creates a SQLite state store at the specified data
// directory. If dataDir is empty, defaults to ~/.sentry-tap/data.
func NewStateStore(dataDir string) (*StateStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sentry-tap", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "state.db")

	// WAL mode keeps concurrent readers off the writer's back.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &StateStore{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *StateStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *StateStore) Path() string {
	return s.path
}

// Load returns the most recently saved state snapshot, or
// domain.ErrNotFound when no snapshot has ever been saved.
func (s *StateStore) Load(ctx context.Context) (domain.State, error) {
	var payload string
	row := s.db.QueryRowContext(ctx,
		"SELECT payload FROM state_snapshots ORDER BY id DESC LIMIT 1")
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.State{}, domain.ErrNotFound
		}
		return domain.State{}, fmt.Errorf("loading state: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return domain.State{}, fmt.Errorf("parsing stored state: %w", err)
	}
	return state, nil
}

// Save appends a new state snapshot.
func (s *StateStore) Save(ctx context.Context, state domain.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO state_snapshots (payload) VALUES (?)", string(payload))
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

func (s *StateStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}
