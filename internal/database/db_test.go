package database

import (
	"path/filepath"
	"testing"
)

func TestNewDBAndMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "test.db")

	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	// Migrations must be idempotent
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migration run failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM activity_log").Scan(&count); err != nil {
		t.Fatalf("activity_log table missing: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM plugin_installs").Scan(&count); err != nil {
		t.Fatalf("plugin_installs table missing: %v", err)
	}
}
