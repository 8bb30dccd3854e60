// Package database owns the embedded SQLite store used for the activity
// log and plugin install history.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// sqlitePragmas is applied to every new connection via the DSN. WAL
// keeps readers from blocking the writer, and the busy timeout covers
// short write contention between the HTTP handlers and the job workers.
var sqlitePragmas = []string{
	"foreign_keys(ON)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// DB wraps the SQLite handle.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the SQLite database at path and
// verifies the connection.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}

	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := handle.Ping(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{handle}, nil
}

func sqliteDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve database path: %w", err)
	}

	// File URIs always use forward slashes.
	var dsn strings.Builder
	dsn.WriteString("file:")
	dsn.WriteString(strings.ReplaceAll(abs, "\\", "/"))
	for i, pragma := range sqlitePragmas {
		if i == 0 {
			dsn.WriteString("?_pragma=")
		} else {
			dsn.WriteString("&_pragma=")
		}
		dsn.WriteString(pragma)
	}
	return dsn.String(), nil
}

// Migrate applies any migrations not yet recorded in the migrations
// table. Each migration runs in its own transaction.
func (db *DB) Migrate() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.appliedVersions()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := db.applyMigration(m); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) applyMigration(m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec(m.Up); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
	}
	if _, err := tx.Exec("INSERT INTO migrations (version, applied_at) VALUES (?, datetime('now'))", m.Version); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
	}
	return nil
}

func (db *DB) appliedVersions() (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
