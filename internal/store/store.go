// Package store is the device-local relational store. It is a plain keyed
// record store: all reconciliation and workflow logic lives in the callers.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/perceptive-automation/polaris-edge/internal/models"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path and applies the schema.
// SQLite allows a single writer, so the pool is pinned to one connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err = db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// AddLogEntry appends one row to the device status log.
func (s *Store) AddLogEntry(typ models.LogType, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO log (type, message, created_at) VALUES (?, ?, ?)`,
		int(typ), message, time.Now())
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

// partialUpdate builds an UPDATE statement from the given column/value pairs,
// skipping nil values, and always refreshes updated_at. Keyed by sync_id.
func (s *Store) partialUpdate(table string, syncID string, cols []string, vals []any) error {
	set := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(vals)+2)
	for i, col := range cols {
		if vals[i] == nil {
			continue
		}
		set = append(set, col+"=?")
		args = append(args, vals[i])
	}
	set = append(set, "updated_at=?")
	args = append(args, time.Now(), syncID)

	q := "UPDATE " + table + " SET " + strings.Join(set, ", ") + " WHERE sync_id=?"
	if _, err := s.db.Exec(q, args...); err != nil {
		return fmt.Errorf("update %s by sync id: %w", table, err)
	}
	return nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
