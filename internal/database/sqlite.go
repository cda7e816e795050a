// Package database provides SQLite persistence for identities.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

// Open connects to the SQLite database at dbPath and ensures the schema
// exists. ":memory:" yields a private in-memory database.
func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// every pooled connection to :memory: would see its own empty database
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init database schema: couldn't enable foreign keys: %w", err)
	}

	store := NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing handle without touching the schema.
func NewStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return initTable(ctx, s.db, "identity", `
		CREATE TABLE IF NOT EXISTS identity (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			display_name  TEXT NOT NULL,
			role          TEXT NOT NULL,
			secret        BLOB NOT NULL
		);`,
	)
}

func initTable(
	ctx context.Context,
	db *sql.DB,
	name string,
	sql string,
) error {
	if _, err := db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("failed to init '%s' table schema: %v", name, err)
	}
	return nil
}

func resultsEmpty(result sql.Result) bool {
	n, err := result.RowsAffected()
	return err != nil || n == 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
