// Package store owns the on-disk FINJA database: schema creation, the
// table set from spec.md §3 and §6, and the transaction boundaries each
// caller needs. The embedded engine is modernc.org/sqlite, a pure-Go
// driver registered under database/sql so the rest of the module only
// ever sees *sql.DB / *sql.Tx.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// FileName is the literal name of the database file at the project root
// (spec.md §1, §6).
const FileName = "FINJA"

// ListName is the optional explicit file list (spec.md §6).
const ListName = "FINJA.lst"

// Store wraps the database handle and exposes the schema-level operations
// every other package composes into larger transactions.
type Store struct {
	db *sql.DB
}

// Open opens (or, if create is true and the file is absent, creates) the
// FINJA database at path. Schema creation happens once, inside a single
// transaction, the first time the file doesn't already exist. Created
// reports whether this call actually laid down a fresh schema, as
// opposed to opening one that already existed — callers that gate
// creation-only behavior (spec.md §6: INTERPUNCT is immutable after
// creation) need to know which happened, not just whether creation was
// permitted.
func Open(path string, create bool) (s *Store, created bool, err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // spec.md §5: single-process, no concurrent indexers

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, false, fmt.Errorf("enable foreign keys: %w", err)
	}

	exists, err := hasSchema(db)
	if err != nil {
		db.Close()
		return nil, false, err
	}
	if !exists {
		if !create {
			db.Close()
			return nil, false, fmt.Errorf("%s: no FINJA index found (run --index first)", path)
		}
		if err := createSchema(db); err != nil {
			db.Close()
			return nil, false, fmt.Errorf("create schema: %w", err)
		}
		return &Store{db: db}, true, nil
	}

	return &Store{db: db}, false, nil
}

func hasSchema(db *sql.DB) (bool, error) {
	var name string
	err := db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'finja'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE finja (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			token_id INTEGER NOT NULL,
			file_id  INTEGER NOT NULL,
			line     INTEGER NOT NULL
		)`,
		`CREATE INDEX finja_token_id_idx ON finja (token_id)`,
		`CREATE INDEX finja_file_idx ON finja (file_id)`,

		`CREATE TABLE token (
			id     INTEGER PRIMARY KEY,
			string BLOB NOT NULL
		)`,
		`CREATE UNIQUE INDEX token_string_idx ON token (string)`,

		`CREATE TABLE path_token (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			string TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX path_token_string_idx ON path_token (string)`,

		`CREATE TABLE file (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			path     BLOB NOT NULL,
			md5      BLOB,
			inode    INTEGER,
			found    INTEGER NOT NULL DEFAULT 1,
			encoding TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE UNIQUE INDEX file_path_idx ON file (path)`,
		`CREATE INDEX file_md5_idx ON file (md5)`,

		`CREATE TABLE key_value (
			key   INTEGER PRIMARY KEY,
			value BLOB
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

// DB returns the underlying handle for packages that need to run
// transactions spanning several of the helpers below (token dictionary,
// change detector, indexer).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Vacuum reclaims space (the --vacuum CLI flag, spec.md §6).
func (s *Store) Vacuum() error {
	_, err := s.db.Exec("VACUUM")
	return err
}
