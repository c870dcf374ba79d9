// Package store persists sites, readings, and advisories in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database. The ro handle is a second connection
// opened in read-only mode, used exclusively for generated SQL so a bad
// query can never mutate the timeline.
type Store struct {
	db *sql.DB
	ro *sql.DB
}

// Open opens (creating if necessary) the database at path and runs any
// pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	ro, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening read-only connection: %w", err)
	}
	s.ro = ro

	return s, nil
}

// Close closes the database connections.
func (s *Store) Close() error {
	if s.ro != nil {
		s.ro.Close()
	}
	return s.db.Close()
}

// ExecuteReadOnly runs query against the read-only connection and returns
// all rows. Callers are expected to have validated the query first; the
// read-only connection is the backstop, not the policy.
func (s *Store) ExecuteReadOnly(query string) (*QueryResult, error) {
	rows, err := s.ro.Query(query)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := &QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// GetStats returns aggregate counts for the status command.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM sites", &stats.Sites},
		{"SELECT COUNT(*) FROM sites WHERE is_active = 1", &stats.ActiveSites},
		{"SELECT COUNT(*) FROM readings", &stats.Readings},
		{"SELECT COUNT(*) FROM advisories", &stats.Advisories},
		{"SELECT COUNT(*) FROM advisories WHERE affects_us = 1", &stats.AffectingUs},
		{"SELECT COUNT(*) FROM readings WHERE error_message IS NOT NULL", &stats.ErrorReadings},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}
	return stats, nil
}
