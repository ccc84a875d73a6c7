// Package repository persists registered MCP servers, their discovered
// capabilities, and the supplementary A2A agent-card registry in SQLite.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store wraps a single SQLite connection. Writes are serialized by SQLite's
// own single-writer model: for a file-backed store SetMaxOpenConns(1) makes
// every statement, insert, and cascade delete atomic with respect to every
// other caller without any application-level locking.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema. path may be ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS mcp_servers (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	transport     TEXT NOT NULL,
	command       TEXT NOT NULL DEFAULT '',
	args          TEXT NOT NULL DEFAULT '[]',
	env           TEXT NOT NULL DEFAULT '{}',
	url           TEXT NOT NULL DEFAULT '',
	headers       TEXT NOT NULL DEFAULT '{}',
	status        TEXT NOT NULL DEFAULT 'active',
	created_at    DATETIME NOT NULL,
	last_verified DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS mcp_tools (
	server_id    TEXT NOT NULL REFERENCES mcp_servers(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	input_schema TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (server_id, name)
);

CREATE TABLE IF NOT EXISTS mcp_resources (
	server_id    TEXT NOT NULL REFERENCES mcp_servers(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	uri          TEXT NOT NULL,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	mime_type    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (server_id, uri)
);

CREATE TABLE IF NOT EXISTS mcp_prompts (
	server_id    TEXT NOT NULL REFERENCES mcp_servers(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	arguments    TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (server_id, name)
);

CREATE TABLE IF NOT EXISTS agent_cards (
	id             TEXT PRIMARY KEY,
	owner          TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL,
	card           TEXT NOT NULL,
	streaming      INTEGER NOT NULL DEFAULT 0,
	last_heartbeat DATETIME,
	created_at     DATETIME NOT NULL
);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("repository: migrate: %w", err)
	}
	return nil
}

// txDo runs fn inside a transaction, rolling back on any error including a
// panic re-raised after rollback.
func (s *Store) txDo(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func now() time.Time { return time.Now().UTC() }

func isNoRows(err error) bool { return err == sql.ErrNoRows }
