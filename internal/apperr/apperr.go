// Package apperr carries the domain error taxonomy from the persistence and
// service layers up to the HTTP layer, where each Kind maps to one status.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindRecordMissing      Kind = "record_missing"
	KindMismatch           Kind = "mismatch"
	KindIntegrityViolation Kind = "integrity_violation"
	KindInvalid            Kind = "invalid"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindConflict           Kind = "conflict"
	KindInternal           Kind = "internal"
)

// Error is a classified failure. Detail is safe to show to clients; Err is
// the underlying cause and is only logged.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on Kind, so callers can compare against the
// sentinel values below regardless of Detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Detail == "" || t.Detail == e.Detail)
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinels for errors.Is. They have no Detail and match any Error of
// the same Kind.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrRecordMissing      = &Error{Kind: KindRecordMissing}
	ErrMismatch           = &Error{Kind: KindMismatch}
	ErrIntegrityViolation = &Error{Kind: KindIntegrityViolation}
	ErrInvalid            = &Error{Kind: KindInvalid}
	ErrConflict           = &Error{Kind: KindConflict}
)
