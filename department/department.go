// Package department is the directory of departments that own tasks.
package department

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("department not found")
	ErrInvalid   = errors.New("invalid department")
	ErrDuplicate = errors.New("department already exists")
)

// Department is an organisational unit. Tasks belong to exactly one.
type Department struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SQLiteStore reads and writes the departments table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Create inserts a department. Names are trimmed and must be unique.
func (s *SQLiteStore) Create(ctx context.Context, name string) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	d := &Department{Name: name, CreatedAt: time.Now().UTC()}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO departments (name, created_at) VALUES (?, ?)`, d.Name, d.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, name)
		}
		return nil, fmt.Errorf("insert department: %w", err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("insert department: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Department, error) {
	var d Department
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM departments WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("department %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get department: %w", err)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

// List returns every department ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]*Department, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM departments ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		d.CreatedAt = d.CreatedAt.UTC()
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Exists reports whether a department with id is on file. It satisfies
// task.Directory.
func (s *SQLiteStore) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM departments WHERE id = ?`, id,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup department: %w", err)
	}
	return n > 0, nil
}
