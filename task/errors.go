package task

import (
	"errors"
	"fmt"
)

// Error kinds returned by the engine. Match them with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
	ErrStore             = errors.New("store error")
)

// ErrConflict is returned by Store.UpdateIf when the stored status no longer
// matches the expected one. The engine reports it as ErrInvalidTransition.
var ErrConflict = errors.New("status changed concurrently")

// Error is a typed engine failure.
type Error struct {
	Kind error  // one of the Err* kinds above
	Op   string // engine operation, e.g. "approve"
	Msg  string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	s := e.Kind.Error()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationf(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func invalidTransition(op string, from Status) error {
	return &Error{Kind: ErrInvalidTransition, Op: op, Msg: fmt.Sprintf("not allowed from %s", from)}
}

func permissionDenied(op string) error {
	return &Error{Kind: ErrPermissionDenied, Op: op, Msg: "admin role required"}
}

func notFound(op string, id int64) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf("task %d", id)}
}

func storeError(op string, err error) error {
	return &Error{Kind: ErrStore, Op: op, Err: err}
}
