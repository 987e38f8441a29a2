// Package store writes snapshots of the workspace index to SQLite and reads
// them back for offline queries. The analysis core never loads a snapshot.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("morpheus.store")

// Store is the SQLite snapshot database.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  uri             TEXT NOT NULL UNIQUE,
  version         INTEGER,
  hash            TEXT,
  line_count      INTEGER,
  exported_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  key             TEXT NOT NULL,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  scope           TEXT,
  container       TEXT,
  params          TEXT,
  signature_hash  TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  name_line       INTEGER,
  name_col        INTEGER
);

CREATE TABLE IF NOT EXISTS references_ (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  key             TEXT NOT NULL,
  name            TEXT NOT NULL,
  context         TEXT,
  scope           TEXT,
  container       TEXT,
  is_definition   BOOLEAN DEFAULT FALSE,
  is_declaration  BOOLEAN DEFAULT FALSE,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_key ON symbols(key);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_hash ON symbols(signature_hash);
CREATE INDEX IF NOT EXISTS idx_references_file ON references_(file_id);
CREATE INDEX IF NOT EXISTS idx_references_key ON references_(key);
`

// DeleteFileData transactionally removes a file and everything it owns.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := deleteFileTx(tx, fileID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteFileTx(tx *sql.Tx, fileID int64) error {
	for _, q := range []string{
		"DELETE FROM references_ WHERE file_id = ?",
		"DELETE FROM symbols WHERE file_id = ?",
		"DELETE FROM files WHERE id = ?",
	} {
		if _, err := tx.Exec(q, fileID); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}
	return nil
}

// Prune deletes every file whose URI is not in keep.
func (s *Store) Prune(keep []string) (int, error) {
	files, err := s.Files()
	if err != nil {
		return 0, err
	}
	want := make(map[string]bool, len(keep))
	for _, u := range keep {
		want[u] = true
	}
	var pruned int
	for _, f := range files {
		if want[f.URI] {
			continue
		}
		if err := s.DeleteFileData(f.ID); err != nil {
			return pruned, fmt.Errorf("prune %s: %w", f.URI, err)
		}
		pruned++
	}
	return pruned, nil
}

// Counts returns the number of files, symbols and references stored.
func (s *Store) Counts() (files, symbols, references int, err error) {
	for _, c := range []struct {
		table string
		dst   *int
	}{{"files", &files}, {"symbols", &symbols}, {"references_", &references}} {
		if err = s.db.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dst); err != nil {
			return 0, 0, 0, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return files, symbols, references, nil
}
