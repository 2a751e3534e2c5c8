// Package audit provides an asynchronous audit trail of method dispatches.
// Records are queued on a buffered channel and written to SQLite by a
// background worker, so the dispatch hot path never blocks on disk.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// Record is one audited dispatch.
type Record struct {
	Time      time.Time
	SessionID string
	Method    string
	Tool      string
	Duration  time.Duration
	ErrorCode int // 0 = success
}

// Store persists audit records.
type Store interface {
	// WriteBatch persists a batch of records.
	WriteBatch(records []Record) error

	// Close releases the store.
	Close() error
}

// SQLiteStore implements Store on a local SQLite database in WAL mode.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the audit database at path, creating parent
// directories as needed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS dispatches (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		ts          INTEGER NOT NULL,
		session_id  TEXT NOT NULL,
		method      TEXT NOT NULL,
		tool        TEXT NOT NULL DEFAULT '',
		duration_us INTEGER NOT NULL,
		error_code  INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_dispatches_ts ON dispatches(ts)`)
	return err
}

// WriteBatch inserts records in one transaction.
func (s *SQLiteStore) WriteBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO dispatches (ts, session_id, method, tool, duration_us, error_code)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.Time.UnixNano(), r.SessionID, r.Method, r.Tool, r.Duration.Microseconds(), r.ErrorCode); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert audit record: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored records. Used by tests.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM dispatches`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
