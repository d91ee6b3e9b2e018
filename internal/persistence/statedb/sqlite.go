// Package statedb stores behavior run states and session resume tokens in
// a local SQLite database.
package statedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"minepilot.ai/internal/behavior"
)

type Store struct {
	db *sql.DB
}

var _ behavior.RunStore = (*Store)(nil)

func OpenSQLite(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS behavior_runs (
			name TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL,
			config_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			username TEXT PRIMARY KEY,
			resume_token TEXT NOT NULL,
			last_connected_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) SaveRun(ctx context.Context, rec behavior.RunRecord) error {
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	cfg := string(rec.Config)
	if cfg == "" {
		cfg = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO behavior_runs(name,enabled,config_json,updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET enabled=excluded.enabled, config_json=excluded.config_json, updated_at=excluded.updated_at`,
		rec.Name, boolInt(rec.Enabled), cfg, updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.Name, err)
	}
	return nil
}

func (s *Store) LoadRuns(ctx context.Context) ([]behavior.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name,enabled,config_json,updated_at FROM behavior_runs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []behavior.RunRecord
	for rows.Next() {
		var (
			rec     behavior.RunRecord
			enabled int
			cfg     string
			updated string
		)
		if err := rows.Scan(&rec.Name, &enabled, &cfg, &updated); err != nil {
			return nil, err
		}
		rec.Enabled = enabled != 0
		rec.Config = []byte(cfg)
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			rec.UpdatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveSession remembers the resume token handed out for username.
func (s *Store) SaveSession(ctx context.Context, username, resumeToken string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(username,resume_token,last_connected_at) VALUES(?,?,?)
		 ON CONFLICT(username) DO UPDATE SET resume_token=excluded.resume_token, last_connected_at=excluded.last_connected_at`,
		username, resumeToken, at.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// LoadResumeToken returns "" when username has no stored session.
func (s *Store) LoadResumeToken(ctx context.Context, username string) (string, error) {
	var tok string
	err := s.db.QueryRowContext(ctx, `SELECT resume_token FROM sessions WHERE username=?`, username).Scan(&tok)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return tok, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
