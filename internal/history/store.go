// Package history keeps a SQLite log of status transitions.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at          TEXT    NOT NULL,
	mode        TEXT    NOT NULL,
	prev_mode   TEXT    NOT NULL DEFAULT '',
	notice      TEXT    NOT NULL DEFAULT '',
	in_bytes    INTEGER NOT NULL DEFAULT 0,
	out_bytes   INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0,
	error       TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions(at);
`

const timeLayout = time.RFC3339Nano

// Entry is one recorded transition.
type Entry struct {
	ID         int64
	At         time.Time
	Mode       string
	PrevMode   string
	Notice     string
	InBytes    int64
	OutBytes   int64
	ErrorCount int
	Error      string
}

// Store wraps the history database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// A single writer keeps WAL happy across goroutines.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.conn.Close() }

// Record inserts e and returns its ID.
func (s *Store) Record(e Entry) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT INTO transitions (at, mode, prev_mode, notice, in_bytes, out_bytes, error_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.At.UTC().Format(timeLayout), e.Mode, e.PrevMode, e.Notice, e.InBytes, e.OutBytes, e.ErrorCount, e.Error)
	if err != nil {
		return 0, fmt.Errorf("record transition: %w", err)
	}
	return res.LastInsertId()
}

// Tail returns the last limit entries in chronological order (oldest first).
func (s *Store) Tail(limit int) ([]Entry, error) {
	entries, err := s.query(`
		SELECT id, at, mode, prev_mode, notice, in_bytes, out_bytes, error_count, error
		FROM transitions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// After returns entries with id > afterID, oldest first. Used by follow mode.
func (s *Store) After(afterID int64, limit int) ([]Entry, error) {
	return s.query(`
		SELECT id, at, mode, prev_mode, notice, in_bytes, out_bytes, error_count, error
		FROM transitions
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?
	`, afterID, limit)
}

// Prune deletes rows not in the newest maxRows entries and returns how many
// were removed.
func (s *Store) Prune(maxRows int) (int64, error) {
	res, err := s.conn.Exec(`
		DELETE FROM transitions WHERE id NOT IN (
			SELECT id FROM transitions ORDER BY id DESC LIMIT ?
		)
	`, maxRows)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	var n int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM transitions`).Scan(&n)
	return n, err
}

func (s *Store) query(q string, args ...any) ([]Entry, error) {
	rows, err := s.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &at, &e.Mode, &e.PrevMode, &e.Notice,
			&e.InBytes, &e.OutBytes, &e.ErrorCount, &e.Error); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", at, err)
		}
		e.At = parsed
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
