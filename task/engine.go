package task

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Command names a lifecycle transition.
type Command string

const (
	CommandComplete Command = "complete"
	CommandApprove  Command = "approve"
	CommandReject   Command = "reject"
)

// transitions is the lifecycle table: the states each command may start from
// and the state it moves the task to.
var transitions = map[Command]struct {
	from []Status
	to   Status
}{
	CommandComplete: {from: []Status{StatusOpen, StatusRejected}, to: StatusAwaitingApproval},
	CommandApprove:  {from: []Status{StatusAwaitingApproval}, to: StatusApproved},
	CommandReject:   {from: []Status{StatusAwaitingApproval}, to: StatusRejected},
}

// CanTransition reports whether cmd is legal from status.
func CanTransition(from Status, cmd Command) bool {
	tr, ok := transitions[cmd]
	if !ok {
		return false
	}
	for _, s := range tr.from {
		if s == from {
			return true
		}
	}
	return false
}

// CreateInput carries the caller-supplied fields of a new task.
type CreateInput struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	DepartmentID int64      `json:"department_id"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

// Engine applies lifecycle commands to tasks held in a Store. It keeps no
// state between calls; every transition is one compare-and-swap in the store.
type Engine struct {
	store       Store
	departments Directory
	now         func() time.Time
}

// NewEngine returns an Engine over store. departments may be nil, in which
// case department ids are not checked on create.
func NewEngine(store Store, departments Directory) *Engine {
	return &Engine{
		store:       store,
		departments: departments,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for lifecycle timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// CreateTask creates an open task owned by in.DepartmentID and assigned by actor.
func (e *Engine) CreateTask(ctx context.Context, actor Actor, in CreateInput) (*Task, error) {
	const op = "create"
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationf(op, "title is required")
	}
	if in.DepartmentID <= 0 {
		return nil, validationf(op, "department_id is required")
	}
	if e.departments != nil {
		ok, err := e.departments.Exists(ctx, in.DepartmentID)
		if err != nil {
			return nil, storeError(op, err)
		}
		if !ok {
			return nil, validationf(op, "unknown department %d", in.DepartmentID)
		}
	}

	t := &Task{
		Title:        title,
		Description:  in.Description,
		DepartmentID: in.DepartmentID,
		AssignedBy:   actor.UserID,
		Status:       StatusOpen,
		CreatedAt:    e.now(),
	}
	if in.DueDate != nil {
		d := in.DueDate.UTC()
		t.DueDate = &d
	}
	if _, err := e.store.Create(ctx, t); err != nil {
		return nil, storeError(op, err)
	}
	// Re-read so the caller sees stored values, department name included.
	created, err := e.store.Get(ctx, t.ID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return created, nil
}

// CompleteTask submits a visible open or rejected task for approval.
func (e *Engine) CompleteTask(ctx context.Context, actor Actor, id string, note string) (*Task, error) {
	const op = "complete"
	taskID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, op, actor, taskID, CommandComplete, func(t *Task, now time.Time) {
		t.CompletedBy = &actor.UserID
		t.CompletedAt = &now
		t.CompletionNote = note
	})
}

// ApproveTask moves a task awaiting approval to the terminal approved state.
func (e *Engine) ApproveTask(ctx context.Context, actor Actor, id string) (*Task, error) {
	const op = "approve"
	taskID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, permissionDenied(op)
	}
	return e.transition(ctx, op, actor, taskID, CommandApprove, func(t *Task, now time.Time) {
		t.ApprovedBy = &actor.UserID
		t.ApprovedAt = &now
	})
}

// RejectTask sends a task awaiting approval back to its department with a
// reason. A non-nil newDueDate replaces the due date.
func (e *Engine) RejectTask(ctx context.Context, actor Actor, id string, reason string, newDueDate *time.Time) (*Task, error) {
	const op = "reject"
	taskID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, permissionDenied(op)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf(op, "rejection reason is required")
	}
	return e.transition(ctx, op, actor, taskID, CommandReject, func(t *Task, now time.Time) {
		t.RejectedBy = &actor.UserID
		t.RejectedAt = &now
		t.RejectionReason = reason
		if newDueDate != nil {
			d := newDueDate.UTC()
			t.DueDate = &d
		}
	})
}

// GetTask returns a task visible to actor. Absent and invisible tasks are
// both reported as ErrNotFound.
func (e *Engine) GetTask(ctx context.Context, actor Actor, id string) (*Task, error) {
	taskID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return e.load(ctx, "get", actor, taskID)
}

// ListTasks returns the tasks visible to actor, soonest due date first and
// undated tasks last. With statuses given, only tasks in one of them are returned.
func (e *Engine) ListTasks(ctx context.Context, actor Actor, statuses ...Status) ([]*Task, error) {
	const op = "list"
	for _, s := range statuses {
		if !s.Valid() {
			return nil, validationf(op, "unknown status %q", s)
		}
	}
	tasks, err := e.store.List(ctx, Filter{
		DepartmentID: ScopeFor(actor),
		Statuses:     statuses,
		Order:        OrderDueDate,
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	return tasks, nil
}

// ListPending returns every task awaiting approval across all departments,
// newest first. It does not apply department visibility; callers restrict
// it to admins.
func (e *Engine) ListPending(ctx context.Context) ([]*Task, error) {
	tasks, err := e.store.List(ctx, Filter{
		Statuses: []Status{StatusAwaitingApproval},
		Order:    OrderNewest,
	})
	if err != nil {
		return nil, storeError("list pending", err)
	}
	return tasks, nil
}

// AddNote appends a note to a task visible to actor, whatever its status.
func (e *Engine) AddNote(ctx context.Context, actor Actor, id string, body string) (*Note, error) {
	const op = "add note"
	taskID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validationf(op, "note body is required")
	}
	if _, err := e.load(ctx, op, actor, taskID); err != nil {
		return nil, err
	}
	n := &Note{
		TaskID:    taskID,
		AuthorID:  actor.UserID,
		Body:      body,
		CreatedAt: e.now(),
	}
	if _, err := e.store.AddNote(ctx, n); err != nil {
		return nil, storeError(op, err)
	}
	return n, nil
}

// ListNotes returns the notes of a task visible to actor, oldest first.
func (e *Engine) ListNotes(ctx context.Context, actor Actor, id string) ([]*Note, error) {
	const op = "list notes"
	taskID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	if _, err := e.load(ctx, op, actor, taskID); err != nil {
		return nil, err
	}
	notes, err := e.store.ListNotes(ctx, taskID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return notes, nil
}

// load fetches a task and applies the visibility filter.
func (e *Engine) load(ctx context.Context, op string, actor Actor, id int64) (*Task, error) {
	t, err := e.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(op, id)
	}
	if err != nil {
		return nil, storeError(op, err)
	}
	if !Visible(actor, t) {
		return nil, notFound(op, id)
	}
	return t, nil
}

// transition validates cmd against the task's current status, applies the
// side effects to a copy and writes it back only if the status is unchanged.
func (e *Engine) transition(ctx context.Context, op string, actor Actor, id int64, cmd Command, apply func(t *Task, now time.Time)) (*Task, error) {
	current, err := e.load(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, cmd) {
		return nil, invalidTransition(op, current.Status)
	}

	next := *current
	next.Status = transitions[cmd].to
	apply(&next, e.now())

	err = e.store.UpdateIf(ctx, &next, current.Status)
	switch {
	case err == nil:
		return &next, nil
	case errors.Is(err, ErrConflict):
		return nil, &Error{Kind: ErrInvalidTransition, Op: op, Err: err}
	case errors.Is(err, ErrNotFound):
		return nil, notFound(op, id)
	default:
		return nil, storeError(op, err)
	}
}
