// Package task defines the approval-gated task board: the task model, its
// lifecycle engine, the note ledger and department-scoped persistence.
package task

import (
	"context"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusOpen             Status = "open"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusOpen, StatusAwaitingApproval, StatusApproved, StatusRejected}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusAwaitingApproval, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool { return s == StatusApproved }

// Actor is the already-authenticated identity issuing a command.
type Actor struct {
	UserID       int64 `json:"user_id"`
	IsAdmin      bool  `json:"is_admin"`
	DepartmentID int64 `json:"department_id,omitempty"` // 0 when the actor has no department
}

// Task is a unit of assignable work.
type Task struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DepartmentID   int64      `json:"department_id"`
	DepartmentName string     `json:"department_name,omitempty"`
	AssignedBy     int64      `json:"assigned_by"`
	Status         Status     `json:"status"`
	DueDate        *time.Time `json:"due_date,omitempty"`

	CompletedBy    *int64     `json:"completed_by,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CompletionNote string     `json:"completion_note,omitempty"`

	ApprovedBy *int64     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	RejectedBy      *int64     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// DisplayDescription is the text shown for the task: a rejected task shows
// its rejection reason in place of the stored description.
func (t *Task) DisplayDescription() string {
	if t.Status == StatusRejected && t.RejectionReason != "" {
		return t.RejectionReason
	}
	return t.Description
}

// Note is an append-only remark attached to a task.
type Note struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Order selects the sort order of List.
type Order int

const (
	// OrderDueDate sorts by ascending due date with undated tasks last.
	OrderDueDate Order = iota
	// OrderNewest sorts by descending creation time.
	OrderNewest
)

// Filter controls which tasks are returned by List.
type Filter struct {
	DepartmentID *int64   // nil means every department
	Statuses     []Status // empty means every status
	Order        Order
}

// Store persists tasks and their notes.
type Store interface {
	// Create persists a new task and returns its assigned ID.
	Create(ctx context.Context, t *Task) (int64, error)

	// Get retrieves a task by ID. A missing task yields an error wrapping ErrNotFound.
	Get(ctx context.Context, id int64) (*Task, error)

	// UpdateIf writes the lifecycle fields of t only if the stored status is
	// still expected. It returns an error wrapping ErrConflict when the status
	// has moved on, or ErrNotFound when the task is gone.
	UpdateIf(ctx context.Context, t *Task, expected Status) error

	// List returns tasks matching the filter.
	List(ctx context.Context, filter Filter) ([]*Task, error)

	// AddNote appends a note and returns its assigned ID.
	AddNote(ctx context.Context, n *Note) (int64, error)

	// ListNotes returns the notes of a task in insertion order.
	ListNotes(ctx context.Context, taskID int64) ([]*Note, error)
}

// Directory resolves department ids owned by an external collaborator.
type Directory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}
