// Package fault defines the error taxonomy shared by the domain engines and
// the HTTP dispatcher.
//
// Every error that crosses a package boundary should carry one of the
// sentinel kinds below so the dispatcher can translate it to a status code
// with errors.Is.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel kinds.
var (
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrUpstream         = errors.New("upstream unavailable")
	ErrInternal         = errors.New("internal error")
)

// Error is a kinded error with an operation tag and an optional public
// message. Msg, when set, is safe to return to callers verbatim.
type Error struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns a kinded error with a public message.
func NewKind(op string, kind error, msg string) error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// WrapKind attaches kind to err.
func WrapKind(op string, kind error, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap tags err with op, preserving any kind already present. Errors without
// a known kind are classified as internal.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// Validation is shorthand for a validation error with a public message.
func Validation(op, msg string) error { return NewKind(op, ErrValidation, msg) }

// Forbidden is shorthand for a forbidden error with a public message.
func Forbidden(op, msg string) error { return NewKind(op, ErrForbidden, msg) }

var kinds = []error{
	ErrValidation,
	ErrForbidden,
	ErrNotFound,
	ErrMethodNotAllowed,
	ErrUpstream,
	ErrInternal,
}

// KindOf returns the first sentinel kind err matches, or ErrInternal.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// Message returns the outermost public message carried by err, or "".
func Message(err error) string {
	var fe *Error
	for err != nil {
		if !errors.As(err, &fe) {
			return ""
		}
		if fe.Msg != "" {
			return fe.Msg
		}
		err = fe.Err
	}
	return ""
}
