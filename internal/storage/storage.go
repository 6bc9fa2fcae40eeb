// Package storage opens the roster SQLite database and keeps its schema current.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

const createDepartmentsTable = `
CREATE TABLE IF NOT EXISTS departments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL
);`

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    department_id INTEGER NOT NULL,
    assigned_by INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'open'
        CHECK (status IN ('open', 'awaiting_approval', 'approved', 'rejected')),
    due_date DATETIME,
    completed_by INTEGER,
    completed_at DATETIME,
    completion_note TEXT NOT NULL DEFAULT '',
    approved_by INTEGER,
    approved_at DATETIME,
    rejected_by INTEGER,
    rejected_at DATETIME,
    rejection_reason TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);`

const createTaskNotesTable = `
CREATE TABLE IF NOT EXISTS task_notes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id INTEGER NOT NULL,
    author_id INTEGER NOT NULL,
    body TEXT NOT NULL,
    created_at DATETIME NOT NULL
);`

const createSchemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
);`

// migrations is the ordered list of incremental schema changes applied after
// the base tables exist. A migration is skipped when its version is already
// recorded in schema_version.
var migrations = []struct {
	version int
	sql     string
}{
	// v1: department-scoped listing
	{1, "CREATE INDEX IF NOT EXISTS idx_tasks_department ON tasks (department_id, status)"},
	// v2: pending queue
	{2, "CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status, created_at)"},
	// v3: note ledger reads
	{3, "CREATE INDEX IF NOT EXISTS idx_task_notes_task ON task_notes (task_id, id)"},
}

// Open opens (or creates) the SQLite database at path and brings its schema
// up to date. Use ":memory:" for a throwaway database. The caller owns the
// returned handle and must Close it.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY; also keeps :memory: on one connection
	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the base tables and applies pending migrations. It is safe
// to run on every boot.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, ddl := range []string{
		createDepartmentsTable, createTasksTable, createTaskNotesTable,
		createSchemaVersionTable,
	} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	for _, m := range migrations {
		var count int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM schema_version WHERE version = ?", m.version,
		).Scan(&count); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if count > 0 {
			continue
		}
		if err := apply(ctx, db, m.version, m.sql); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration version, or 0.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func apply(ctx context.Context, db *sql.DB, version int, stmt string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration v%d: begin: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("migration v%d: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("migration v%d: record version: %w", version, err)
	}
	return tx.Commit()
}
