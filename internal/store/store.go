// Package store is the SQLite-backed collaborator behind the tracker core.
//
// It persists Projects, Milestones, Features, Functions, Tasks, the
// Milestone–Feature links, dependency edges and the activity log. It holds
// no business rules beyond what the schema enforces (unique ordered edge
// pairs, no self-loops, cascading deletes); cycle checks and roll-ups live
// in the dependency and progress packages, which reach this store through
// interfaces they declare.
//
// Every change to a Project's task set or edge set bumps the Project's
// graph_version. Edge writes are conditional on the version the caller
// last read, which is how cached graphs in other processes detect that
// they are stale.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	DataDir     string
	FileName    string
	BusyTimeout time.Duration
}

// DefaultConfig returns the default configuration for the store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:     filepath.Join(home, ".capstone"),
		FileName:    "tracker.db",
		BusyTimeout: 5 * time.Second,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistent collaborator store backed by SQLite.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec    func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
			return db.ExecContext(ctx, query, args...)
		},
		beginTx: func(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
			return db.BeginTx(ctx, nil)
		},
		commit: func(tx *sql.Tx) error {
			return tx.Commit()
		},
	}
}

func (s *Store) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *Store) beginTxHook(ctx context.Context) (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, s.db)
	}
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if cfg.FileName == "" {
		cfg.FileName = "tracker.db"
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, cfg.FileName)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// foreign_keys is per connection; pin the pool to one connection so
	// the pragma always applies.
	db.SetMaxOpenConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, hooks: defaultStoreHooks()}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id            TEXT    PRIMARY KEY,
			name          TEXT    NOT NULL,
			graph_version INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS milestones (
			id         TEXT    PRIMARY KEY,
			project_id TEXT    NOT NULL,
			title      TEXT    NOT NULL,
			start_date TEXT,
			deadline   TEXT,
			progress   INTEGER NOT NULL DEFAULT 0,
			created_at TEXT    NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS features (
			id         TEXT    PRIMARY KEY,
			project_id TEXT    NOT NULL,
			title      TEXT    NOT NULL,
			status     TEXT    NOT NULL,
			progress   INTEGER NOT NULL DEFAULT 0,
			created_at TEXT    NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS functions (
			id         TEXT    PRIMARY KEY,
			project_id TEXT    NOT NULL,
			feature_id TEXT    NOT NULL,
			title      TEXT    NOT NULL,
			status     TEXT    NOT NULL,
			progress   INTEGER NOT NULL DEFAULT 0,
			created_at TEXT    NOT NULL,
			FOREIGN KEY (feature_id) REFERENCES features(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			project_id  TEXT NOT NULL,
			function_id TEXT NOT NULL,
			title       TEXT NOT NULL,
			status      TEXT NOT NULL,
			start_date  TEXT,
			deadline    TEXT,
			created_at  TEXT NOT NULL,
			FOREIGN KEY (function_id) REFERENCES functions(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS milestone_features (
			milestone_id TEXT NOT NULL,
			feature_id   TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			PRIMARY KEY (milestone_id, feature_id),
			FOREIGN KEY (milestone_id) REFERENCES milestones(id) ON DELETE CASCADE,
			FOREIGN KEY (feature_id)   REFERENCES features(id)   ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS task_dependencies (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			from_task  TEXT NOT NULL,
			to_task    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			CHECK (from_task <> to_task),
			FOREIGN KEY (from_task) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY (to_task)   REFERENCES tasks(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS activity_logs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id  TEXT    NOT NULL,
			entity_kind TEXT    NOT NULL,
			entity_id   TEXT    NOT NULL,
			action      TEXT    NOT NULL,
			detail      TEXT    NOT NULL DEFAULT '',
			created_at  TEXT    NOT NULL
		);
	`
	if _, err := s.execHook(ctx, s.db, schema); err != nil {
		return err
	}

	if _, err := s.execHook(ctx, s.db, `
		CREATE INDEX IF NOT EXISTS idx_milestones_project ON milestones(project_id);
		CREATE INDEX IF NOT EXISTS idx_features_project   ON features(project_id);
		CREATE INDEX IF NOT EXISTS idx_functions_feature  ON functions(feature_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_function     ON tasks(function_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_project      ON tasks(project_id);
		CREATE INDEX IF NOT EXISTS idx_mf_feature         ON milestone_features(feature_id);
		CREATE INDEX IF NOT EXISTS idx_dep_project        ON task_dependencies(project_id);
		CREATE INDEX IF NOT EXISTS idx_dep_to             ON task_dependencies(to_task);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_dep_unique  ON task_dependencies(from_task, to_task);
		CREATE INDEX IF NOT EXISTS idx_activity_project   ON activity_logs(project_id, created_at DESC);
	`); err != nil {
		return err
	}
	return nil
}

// ─── Transactions ────────────────────────────────────────────────────────────

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := s.commitHook(tx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// bumpGraphVersion increments a project's graph_version inside tx. With
// expected >= 0 the update only applies if the current version matches;
// a mismatch is reported as errVersionMismatch.
func (s *Store) bumpGraphVersion(ctx context.Context, tx *sql.Tx, project string, expected int64) (int64, error) {
	var res sql.Result
	var err error
	if expected >= 0 {
		res, err = s.execHook(ctx, tx,
			`UPDATE projects SET graph_version = graph_version + 1 WHERE id = ? AND graph_version = ?`,
			project, expected)
	} else {
		res, err = s.execHook(ctx, tx,
			`UPDATE projects SET graph_version = graph_version + 1 WHERE id = ?`, project)
	}
	if err != nil {
		return 0, fmt.Errorf("bumping graph version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if expected >= 0 {
			return 0, errVersionMismatch
		}
		return 0, fmt.Errorf("project %q not found", project)
	}
	var v int64
	if err := tx.QueryRowContext(ctx, `SELECT graph_version FROM projects WHERE id = ?`, project).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading graph version: %w", err)
	}
	return v, nil
}

var errVersionMismatch = errors.New("graph version mismatch")

// ─── Helpers ─────────────────────────────────────────────────────────────────

// newID returns id if set, otherwise a fresh UUID.
func newID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return uuid.NewString()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func scanNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
