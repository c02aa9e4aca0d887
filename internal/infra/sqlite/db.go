// Package sqlite provides SQLite-based persistent storage for training runs.
// Uses WAL mode for crash-safe writes. The run set and the active-run
// pointer live under two well-known keys in a single key-value table, so a
// load after restart reconstructs exactly what the orchestrator last saved.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/bledden/tinker-voice/internal/domain"
)

// Well-known keys in the app_state table.
const (
	runsKey      = "training_runs"
	activeRunKey = "active_run"
)

// Store wraps a SQLite connection holding the persisted run state.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode and a 5-second busy timeout.
func Open(dir string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close cleanly shuts down the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS app_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Load deserializes the persisted run set and active-run pointer.
// Missing or malformed persisted data never fails startup: it degrades to an
// empty run set and no active run, with a warning in the log.
func (s *Store) Load() ([]domain.TrainingRun, string, error) {
	raw, err := s.get(runsKey)
	if err != nil {
		return nil, "", fmt.Errorf("load runs: %w", err)
	}

	var runs []domain.TrainingRun
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &runs); err != nil {
			s.log.Warn("persisted run set is malformed, starting empty", zap.Error(err))
			return nil, "", nil
		}
	}

	active, err := s.get(activeRunKey)
	if err != nil {
		return nil, "", fmt.Errorf("load active run: %w", err)
	}
	return runs, active, nil
}

// Save serializes the full run set and active pointer. Called after every
// orchestrator mutation; both keys are rewritten in one transaction so a
// crash never leaves them out of step. Timestamps ride along as RFC 3339
// strings via the runs' JSON encoding.
func (s *Store) Save(runs []domain.TrainingRun, activeID string) error {
	if runs == nil {
		runs = []domain.TrainingRun{}
	}
	blob, err := json.Marshal(runs)
	if err != nil {
		return fmt.Errorf("encode runs: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	upsert := `INSERT INTO app_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`
	if _, err := tx.Exec(upsert, runsKey, string(blob)); err != nil {
		return fmt.Errorf("save runs: %w", err)
	}
	if _, err := tx.Exec(upsert, activeRunKey, activeID); err != nil {
		return fmt.Errorf("save active run: %w", err)
	}
	return tx.Commit()
}

// get returns the value under key, or "" when the key is absent.
func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM app_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
