package patterns

import (
	"errors"
	"fmt"
)

// Kind classifies a failure at the package boundary.
type Kind string

const (
	// KindStorageUnavailable means the backend was unreachable, rejected the
	// write, ran out of capacity, or kept conflicting.
	KindStorageUnavailable Kind = "storage_unavailable"

	// KindParse means stored or imported content is not well-formed.
	KindParse Kind = "parse_error"

	// KindValidation means content is well-formed but misses required fields.
	KindValidation Kind = "validation_error"

	// KindNotFound means the target pattern is absent.
	KindNotFound Kind = "not_found"
)

// Sentinels for errors.Is. A *Error matches the sentinel of its kind.
var (
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrParse              = &Error{Kind: KindParse}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
)

// Error is the error type returned by Store, Repository and the exchange package.
type Error struct {
	Kind Kind   // Failure class
	Op   string // Operation that failed, e.g. "create", "read"
	ID   string // Pattern id involved, if any
	Err  error  // Underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op
	if e.ID != "" {
		msg += fmt.Sprintf(" pattern %s", e.ID)
	}
	if msg != "" {
		msg += ": "
	}
	msg += kindText(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels: a bare *Error with only a Kind matches every error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.ID == "" && t.Err == nil
}

// KindOf returns the Kind of err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound returns true if err reports a missing pattern.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func kindText(k Kind) string {
	switch k {
	case KindStorageUnavailable:
		return "storage unavailable"
	case KindParse:
		return "malformed content"
	case KindValidation:
		return "invalid content"
	case KindNotFound:
		return "pattern not found"
	default:
		return string(k)
	}
}

func newError(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}
