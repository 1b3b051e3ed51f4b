package store

import (
	"os"
	"strings"
	"testing"
)

func TestInitDB(t *testing.T) {
	tempDir := t.TempDir()
	testDBPath := tempDir + "/test.db"

	db, err := InitDBWithPath(testDBPath)
	if err != nil {
		t.Fatalf("InitDBWithPath failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, statErr := os.Stat(testDBPath); os.IsNotExist(statErr) {
		t.Fatalf("Database file was not created at %s", testDBPath)
	}

	tables := []string{"sessions", "analysis_steps", "knowledge_entries", "schema_version"}
	for _, table := range tables {
		var name string
		scanErr := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if scanErr != nil {
			t.Errorf("Table %s was not created: %v", table, scanErr)
		}
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("Expected foreign_keys=1, got %d", foreignKeys)
	}
}

func TestOpenDB(t *testing.T) {
	tempDir := t.TempDir()
	testDBPath := tempDir + "/test_open.db"

	db, err := OpenDB(testDBPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count); err != nil {
		t.Fatalf("Failed to count tables: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 tables (no migrations), got %d", count)
	}
}

func TestSchemaVersion_Fresh(t *testing.T) {
	tempDir := t.TempDir()
	testDBPath := tempDir + "/test_version.db"

	db, err := OpenDB(testDBPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	current, latest, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if current != 0 {
		t.Errorf("Expected current=0, got %d", current)
	}
	if latest < 1 {
		t.Errorf("Expected latest>=1, got %d", latest)
	}
}

func TestSchemaVersion_AfterMigrate(t *testing.T) {
	tempDir := t.TempDir()
	testDBPath := tempDir + "/test_migrated.db"

	db, err := InitDBWithPath(testDBPath)
	if err != nil {
		t.Fatalf("InitDBWithPath failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	current, latest, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if current != latest {
		t.Errorf("Expected current=%d after migration, got %d", latest, current)
	}
}

func TestCheckSchemaVersion_FailsOnFreshDB(t *testing.T) {
	tempDir := t.TempDir()
	testDBPath := tempDir + "/test_check_fail.db"

	db, err := OpenDB(testDBPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	err = CheckSchemaVersion(db)
	if err == nil {
		t.Fatal("Expected CheckSchemaVersion to fail on fresh DB")
	}
	if !strings.Contains(err.Error(), "raidme upgrade") {
		t.Errorf("Expected error to mention 'raidme upgrade', got: %s", err.Error())
	}
}

func TestCheckSchemaVersion_PassesAfterMigrate(t *testing.T) {
	tempDir := t.TempDir()
	testDBPath := tempDir + "/test_check_pass.db"

	db, err := InitDBWithPath(testDBPath)
	if err != nil {
		t.Fatalf("InitDBWithPath failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := CheckSchemaVersion(db); err != nil {
		t.Errorf("Expected CheckSchemaVersion to pass after migration, got: %v", err)
	}
}
