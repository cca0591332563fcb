// Package store provides the SQLite persistence for the wiki: the system
// singleton, webs, pages, their revisions and the derived link and category rows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS system (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	password TEXT
);

INSERT OR IGNORE INTO system (id, password) VALUES (1, NULL);

CREATE TABLE IF NOT EXISTS webs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	address          TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	markup           TEXT NOT NULL DEFAULT 'textile',
	color            TEXT NOT NULL DEFAULT '',
	additional_style TEXT NOT NULL DEFAULT '',
	password         TEXT,
	safe_mode        BOOLEAN NOT NULL DEFAULT 0,
	published        BOOLEAN NOT NULL DEFAULT 0,
	brackets_only    BOOLEAN NOT NULL DEFAULT 0,
	count_pages      BOOLEAN NOT NULL DEFAULT 0,
	allow_uploads    BOOLEAN NOT NULL DEFAULT 0,
	max_upload_size  INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	web_id     INTEGER NOT NULL REFERENCES webs(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(web_id, name)
);

CREATE TABLE IF NOT EXISTS revisions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	page_id    INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	number     INTEGER NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	author     TEXT NOT NULL DEFAULT '',
	ip         TEXT NOT NULL DEFAULT '',
	revised_at DATETIME NOT NULL,
	UNIQUE(page_id, number)
);

CREATE TABLE IF NOT EXISTS links (
	page_id  INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	target   TEXT NOT NULL,
	position INTEGER NOT NULL,
	UNIQUE(page_id, target)
);

CREATE TABLE IF NOT EXISTS categories (
	page_id  INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	category TEXT NOT NULL,
	UNIQUE(page_id, category)
);

CREATE INDEX IF NOT EXISTS idx_pages_web ON pages(web_id);
CREATE INDEX IF NOT EXISTS idx_revisions_page ON revisions(page_id, number);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);
CREATE INDEX IF NOT EXISTS idx_categories_category ON categories(category);
`

// queryer is the subset of *sql.DB and *sql.Tx the repositories need.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps a sql.DB holding the wiki schema.
type Store struct {
	conn *sql.DB
}

// Tx runs repository queries either inside a transaction (Update) or
// directly against the pool (View).
type Tx struct {
	q queryer
}

// Open opens (or creates) the SQLite database and applies the schema.
// Transactions take the write lock up front so concurrent writers wait on
// busy_timeout instead of failing on lock upgrade.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// View returns a Tx reading straight from the pool, without a transaction.
func (s *Store) View() *Tx {
	return &Tx{q: s.conn}
}

// Update runs fn inside one transaction. Any error returned by fn rolls
// back every write fn made.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&Tx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
