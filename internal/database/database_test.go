package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()

	// Create temporary directory for test database
	tmpDir, err := os.MkdirTemp("", "urltrail-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDatabase(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

func TestNewDatabase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if db == nil {
		t.Fatal("Expected non-nil database")
	}
	if db.db == nil {
		t.Fatal("Expected non-nil sql.DB")
	}
}

func TestGetAbsentKey(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	value, version, err := db.Get(context.Background(), "tabHistory")
	if err != nil {
		t.Fatalf("Get on absent key failed: %v", err)
	}
	if value != nil {
		t.Errorf("Expected nil value, got %s", value)
	}
	if version != 0 {
		t.Errorf("Expected version 0, got %d", version)
	}
}

func TestCompareAndSwapRejectsInvalidJSON(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if _, err := db.CompareAndSwap(context.Background(), "tabHistory", 0, []byte(`{not json`)); err == nil {
		t.Fatal("Expected error for invalid JSON, got nil")
	}
}

func TestCompareAndSwap(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name    string
		version int64
		value   string
		wantOK  bool
	}{
		{"create when absent", 0, `{"a":1}`, true},
		{"create again fails", 0, `{"a":2}`, false},
		{"stale version fails", 7, `{"a":3}`, false},
		{"current version succeeds", 1, `{"a":4}`, true},
		{"old version after swap fails", 1, `{"a":5}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := db.CompareAndSwap(ctx, "doc", tt.version, []byte(tt.value))
			if err != nil {
				t.Fatalf("CompareAndSwap failed: %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("CompareAndSwap() = %v, want %v", ok, tt.wantOK)
			}
		})
	}

	value, version, err := db.Get(ctx, "doc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != `{"a":4}` || version != 2 {
		t.Errorf("Expected {\"a\":4} at version 2, got %s at version %d", value, version)
	}
}

func TestSharedFileBetweenHandles(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "shared.db")
	ctx := context.Background()

	writer, err := NewDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to open writer: %v", err)
	}
	defer writer.Close()
	reader, err := NewDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer reader.Close()

	if ok, err := writer.CompareAndSwap(ctx, "tabHistory", 0, []byte(`{"3":[]}`)); err != nil || !ok {
		t.Fatalf("CompareAndSwap failed: ok=%v err=%v", ok, err)
	}
	value, _, err := reader.Get(ctx, "tabHistory")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != `{"3":[]}` {
		t.Errorf("Reader saw %s", value)
	}
}

func TestDatabaseClose(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := db.Close()
	if err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
}
