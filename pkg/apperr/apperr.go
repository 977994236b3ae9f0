// Package apperr implements the Op/Kind structured error contract used
// across the engine. It mirrors the call shape of the teacher's internal
// serrors package (serrors.E(op, kind, msg) / serrors.E(op, "doing X",
// err)) observed in modules/bichat/services/title_job_queue.go; serrors'
// own source was not part of the retrieved corpus, so only its usage
// contract is reproduced here.
package apperr

import (
	"errors"
	"fmt"
)

// Op names the operation that failed, e.g. "Session.Ingest".
type Op string

// Kind classifies an error per spec.md §7.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindTransientStorage
	KindTransport
	KindFatalInvariant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindTransientStorage:
		return "transient_storage"
	case KindTransport:
		return "transport"
	case KindFatalInvariant:
		return "fatal_invariant"
	default:
		return "internal"
	}
}

// Error is the structured error type. It is never constructed directly;
// use E.
type Error struct {
	Op      Op
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error from a variadic argument list, in the style of
// serrors.E: the first argument is always the Op; remaining arguments may
// be a Kind, a string message, or a wrapped error, in any order.
func E(op Op, args ...interface{}) *Error {
	e := &Error{Op: op}
	for _, arg := range args {
		switch v := arg.(type) {
		case Kind:
			e.Kind = v
		case string:
			if e.Message == "" {
				e.Message = v
			} else {
				e.Message = e.Message + ": " + v
			}
		case error:
			e.Err = v
			var inner *Error
			if errors.As(v, &inner) && e.Kind == KindInternal {
				e.Kind = inner.Kind
			}
		}
	}
	return e
}

// Is reports whether err (or any error it wraps) is an *Error of the
// given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to KindInternal when err is
// not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
