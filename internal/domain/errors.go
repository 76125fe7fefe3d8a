package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a core failure. The HTTP and MCP layers map kinds
// to status codes and the "reason" field of error bodies.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NotFound"
	KindInvalidEdge        ErrorKind = "InvalidEdge"
	KindCircularDependency ErrorKind = "CircularDependency"
	KindConflict           ErrorKind = "ConcurrentModificationConflict"
	KindInvalidInput       ErrorKind = "InvalidInput"
)

// Error is the single error type raised by the core for caller-visible
// failures. Anything that is not an *Error is an internal failure.
type Error struct {
	Kind    ErrorKind
	Message string
	// Path is the offending cycle for KindCircularDependency.
	Path []TaskID
	Err  error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so errors.Is(err, ErrNotFound) works for any
// NotFound error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidEdge        = &Error{Kind: KindInvalidEdge}
	ErrCircularDependency = &Error{Kind: KindCircularDependency}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
)

// NotFound builds a NotFound error for one entity.
func NotFound(kind EntityKind, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", kind, id)}
}

// InvalidEdge builds an InvalidEdge error.
func InvalidEdge(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidEdge, Message: fmt.Sprintf(format, args...)}
}

// Invalid builds an InvalidInput error.
func Invalid(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

// Circular builds a CircularDependency error carrying the cycle path.
func Circular(path []TaskID) *Error {
	return &Error{
		Kind:    KindCircularDependency,
		Message: "dependency would create a cycle: " + FormatPath(path),
		Path:    path,
	}
}

// Conflict builds a ConcurrentModificationConflict error for a project.
func Conflict(project ProjectID, err error) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("project %q graph was modified concurrently", project),
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// internal errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err is or wraps a NotFound error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is or wraps a concurrency conflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// PathOf returns the cycle path carried by err, if any.
func PathOf(err error) []TaskID {
	var e *Error
	if errors.As(err, &e) {
		return e.Path
	}
	return nil
}

// FormatPath renders a task path as "a → b → c".
func FormatPath(path []TaskID) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = string(id)
	}
	return strings.Join(parts, " → ")
}
