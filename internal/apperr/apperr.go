// Package apperr defines the user-visible error kinds of the request
// workflow. Every kind aborts the current action.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindAuthorization
	KindValidation
	KindInsufficientStock
	KindConfiguration
	KindReservation
	KindImmutableState
	KindPrematureCompletion
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConfiguration:
		return "configuration"
	case KindReservation:
		return "reservation"
	case KindImmutableState:
		return "immutable_state"
	case KindPrematureCompletion:
		return "premature_completion"
	case KindNotFound:
		return "not_found"
	}
	return "internal"
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrAuthorization       = &Error{Kind: KindAuthorization, Message: "not allowed"}
	ErrValidation          = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrConfiguration       = &Error{Kind: KindConfiguration, Message: "configuration missing"}
	ErrReservation         = &Error{Kind: KindReservation, Message: "reservation failed"}
	ErrImmutableState      = &Error{Kind: KindImmutableState, Message: "record is locked"}
	ErrPrematureCompletion = &Error{Kind: KindPrematureCompletion, Message: "transfers not done"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}

	// ErrInvalidTransition is a validation error for a state change that is
	// not an edge of the request lifecycle.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Error is a classified error with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Authorization reports that the actor lacks a required role.
func Authorization(format string, args ...any) error {
	return newf(KindAuthorization, format, args...)
}

// Validation reports missing or malformed input.
func Validation(format string, args ...any) error {
	return newf(KindValidation, format, args...)
}

// InsufficientStock reports a requested quantity above availability.
func InsufficientStock(format string, args ...any) error {
	return newf(KindInsufficientStock, format, args...)
}

// Configuration reports missing warehouse, picking type or location setup.
func Configuration(format string, args ...any) error {
	return newf(KindConfiguration, format, args...)
}

// Reservation wraps a failure to create, confirm or reserve a transfer.
func Reservation(err error, format string, args ...any) error {
	e := newf(KindReservation, format, args...)
	e.Err = err
	return e
}

// ImmutableState reports an edit of an approved or done request.
func ImmutableState(format string, args ...any) error {
	return newf(KindImmutableState, format, args...)
}

// PrematureCompletion reports completion before linked transfers are done.
func PrematureCompletion(format string, args ...any) error {
	return newf(KindPrematureCompletion, format, args...)
}

// NotFound reports a missing record.
func NotFound(format string, args ...any) error {
	return newf(KindNotFound, format, args...)
}

// InvalidTransition reports a disallowed request state change.
func InvalidTransition(from, to string) error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf("cannot move request from %s to %s", from, to),
		Err:     ErrInvalidTransition,
	}
}

// KindOf returns the kind of err, or KindInternal if it is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
