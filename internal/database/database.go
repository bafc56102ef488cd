package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite
)

// Database is the key/value store shared by the relay and the panel.
// Every value is a JSON document with a version that increases on each write.
type Database struct {
	db *sql.DB
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout so the relay and a panel can share the file
	db, err := sql.Open("sqlite", databasePath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS kv(
	  key         TEXT    PRIMARY KEY,
	  value       TEXT    NOT NULL CHECK (json_valid(value)),
	  version     INTEGER NOT NULL,
	  updated_utc INTEGER NOT NULL
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Get returns the value stored under key and its version.
// An absent key yields a nil value and version 0.
func (d *Database) Get(ctx context.Context, key string) ([]byte, int64, error) {
	var (
		value   string
		version int64
	)
	err := d.db.QueryRowContext(ctx, `SELECT value, version FROM kv WHERE key = ?`, key).Scan(&value, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return []byte(value), version, nil
}

// CompareAndSwap writes value only if the stored version still equals version.
// Version 0 means the key must not exist yet.
func (d *Database) CompareAndSwap(ctx context.Context, key string, version int64, value []byte) (bool, error) {
	now := time.Now().UnixMilli()
	var (
		result sql.Result
		err    error
	)
	if version == 0 {
		result, err = d.db.ExecContext(ctx,
			`INSERT INTO kv(key, value, version, updated_utc) VALUES(?, json(?), 1, ?) ON CONFLICT(key) DO NOTHING`,
			key, string(value), now)
	} else {
		result, err = d.db.ExecContext(ctx,
			`UPDATE kv SET value = json(?), version = version + 1, updated_utc = ? WHERE key = ? AND version = ?`,
			string(value), now, key, version)
	}
	if err != nil {
		return false, fmt.Errorf("failed to swap key %q: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to swap key %q: %w", key, err)
	}
	return affected == 1, nil
}
