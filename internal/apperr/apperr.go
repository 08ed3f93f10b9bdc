package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	Expired
	PreconditionFailed
	InvalidArgument
	Unauthenticated
	PermissionDenied
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case Expired:
		return "expired"
	case PreconditionFailed:
		return "failed-precondition"
	case InvalidArgument:
		return "invalid-argument"
	case Unauthenticated:
		return "unauthenticated"
	case PermissionDenied:
		return "permission-denied"
	default:
		return "internal"
	}
}

// Error is a failure with a kind the transport layer can map to a status.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches an *Error of the same kind. A target with an empty Msg matches
// any message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns Internal for errors that carry no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
