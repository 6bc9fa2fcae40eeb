// Package comms carries task lifecycle events from the API to live listeners.
package comms

import (
	"context"
	"time"
)

// EventType identifies what happened to a task.
type EventType string

const (
	TypeTaskCreated   EventType = "task.created"
	TypeTaskCompleted EventType = "task.completed"
	TypeTaskApproved  EventType = "task.approved"
	TypeTaskRejected  EventType = "task.rejected"
	TypeNoteAdded     EventType = "task.note_added"
)

// Event records one change to a task. DepartmentID scopes who may see it.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	TaskID       int64     `json:"task_id"`
	DepartmentID int64     `json:"department_id"`
	ActorID      int64     `json:"actor_id"`
	Status       string    `json:"status,omitempty"` // task status after the change
	Timestamp    time.Time `json:"timestamp"`
}

// Handler is called for every published event.
type Handler func(ctx context.Context, ev *Event) error

// Bus fans task events out to subscribers and keeps a bounded history.
type Bus interface {
	// Publish records ev and delivers it to every subscriber. ID and
	// Timestamp are filled in when empty.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers handler. Returns an unsubscribe function.
	Subscribe(handler Handler) (unsubscribe func())

	// History returns up to limit recent events, oldest first. A non-nil
	// department restricts the result to that department's events.
	History(department *int64, limit int) ([]*Event, error)
}
