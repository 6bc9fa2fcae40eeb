package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const taskColumns = `
	t.id, t.title, t.description, t.department_id, COALESCE(d.name, ''), t.assigned_by,
	t.status, t.due_date,
	t.completed_by, t.completed_at, t.completion_note,
	t.approved_by, t.approved_at,
	t.rejected_by, t.rejected_at, t.rejection_reason,
	t.created_at`

const taskFrom = `
	FROM tasks t
	LEFT JOIN departments d ON d.id = t.department_id`

// SQLiteStore persists tasks and notes in the roster SQLite database. The
// schema is owned by internal/storage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database handle. The caller keeps ownership
// of db and closes it.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Create persists a new task and sets its ID. CreatedAt is filled in when zero.
func (s *SQLiteStore) Create(ctx context.Context, t *Task) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks
			(title, description, department_id, assigned_by, status, due_date, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		t.Title, t.Description, t.DepartmentID, t.AssignedBy, string(t.Status),
		nullTime(t.DueDate), t.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	t.ID = id
	return id, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+taskFrom+` WHERE t.id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, err
}

// UpdateIf writes the lifecycle columns of t as a single compare-and-swap on
// status. Identity columns (title, description, department, assigner,
// creation time) are never rewritten.
func (s *SQLiteStore) UpdateIf(ctx context.Context, t *Task, expected Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			status=?, due_date=?,
			completed_by=?, completed_at=?, completion_note=?,
			approved_by=?, approved_at=?,
			rejected_by=?, rejected_at=?, rejection_reason=?
		WHERE id=? AND status=?`,
		string(t.Status), nullTime(t.DueDate),
		nullInt64(t.CompletedBy), nullTime(t.CompletedAt), t.CompletionNote,
		nullInt64(t.ApprovedBy), nullTime(t.ApprovedAt),
		nullInt64(t.RejectedBy), nullTime(t.RejectedAt), t.RejectionReason,
		t.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, t.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("task %d: %w", t.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return fmt.Errorf("task %d is %s, expected %s: %w", t.ID, current, expected, ErrConflict)
}

// List returns tasks matching the filter.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT ` + taskColumns + taskFrom + ` WHERE 1=1`)
	args := []any{}

	if filter.DepartmentID != nil {
		q.WriteString(" AND t.department_id = ?")
		args = append(args, *filter.DepartmentID)
	}
	if len(filter.Statuses) > 0 {
		q.WriteString(" AND t.status IN (?" + strings.Repeat(",?", len(filter.Statuses)-1) + ")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	switch filter.Order {
	case OrderNewest:
		q.WriteString(" ORDER BY t.created_at DESC, t.id DESC")
	default:
		q.WriteString(" ORDER BY t.due_date IS NULL, t.due_date ASC, t.id ASC")
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// AddNote appends a note and sets its ID. CreatedAt is filled in when zero.
func (s *SQLiteStore) AddNote(ctx context.Context, n *Note) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO task_notes (task_id, author_id, body, created_at) VALUES (?,?,?,?)`,
		n.TaskID, n.AuthorID, n.Body, n.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}
	n.ID = id
	return id, nil
}

// ListNotes returns the notes of a task, oldest first.
func (s *SQLiteStore) ListNotes(ctx context.Context, taskID int64) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, author_id, body, created_at
		 FROM task_notes WHERE task_id = ? ORDER BY created_at ASC, id ASC`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notes []*Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.TaskID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.CreatedAt = n.CreatedAt.UTC()
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status string
	var dueDate, completedAt, approvedAt, rejectedAt sql.NullTime
	var completedBy, approvedBy, rejectedBy sql.NullInt64

	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &t.DepartmentID, &t.DepartmentName, &t.AssignedBy,
		&status, &dueDate,
		&completedBy, &completedAt, &t.CompletionNote,
		&approvedBy, &approvedAt,
		&rejectedBy, &rejectedAt, &t.RejectionReason,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.CreatedAt = t.CreatedAt.UTC()
	t.DueDate = timePtr(dueDate)
	t.CompletedBy = int64Ptr(completedBy)
	t.CompletedAt = timePtr(completedAt)
	t.ApprovedBy = int64Ptr(approvedBy)
	t.ApprovedAt = timePtr(approvedAt)
	t.RejectedBy = int64Ptr(rejectedBy)
	t.RejectedAt = timePtr(rejectedAt)
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
