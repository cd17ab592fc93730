// Package apperr defines the error taxonomy shared by services and
// handlers: validation, not-found, state, permission and dependency
// failures each map to a distinct HTTP status at the edge.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindState
	KindPermission
	KindDependency
)

type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on kind for non-sentinel targets, so
// callers can test against e.g. apperr.State("") style probes via
// KindOf instead. Sentinels compare by pointer as usual.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t == ErrAlreadyCommitted {
		return e == ErrAlreadyCommitted
	}
	return e.Kind == t.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// ErrAlreadyCommitted is the idempotency signal for a session that was
// already approved. Callers may treat it as a non-fatal outcome.
var ErrAlreadyCommitted = &Error{Kind: KindState, Msg: "session already committed"}

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %s not found", entity, id)}
}

func State(msg string) *Error {
	return &Error{Kind: KindState, Msg: msg}
}

func Permission(msg string) *Error {
	return &Error{Kind: KindPermission, Msg: msg}
}

func Dependency(op string, err error) *Error {
	return &Error{Kind: KindDependency, Msg: fmt.Sprintf("dependency failure during %s", op), Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
