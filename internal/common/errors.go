// Package common defines the error taxonomy shared by the local data layer
// and a few random-value helpers. Callers should use errors.Is to match the
// sentinel values and KindOf to classify any error.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Auth errors.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrSessionMissing     = errors.New("auth session missing")
	ErrUserExists         = errors.New("user already registered")

	// Stand-in capabilities with no local equivalent.
	ErrNotImplemented = errors.New("not implemented")
)

// Kind classifies an error for callers that need to react to its category
// rather than to a particular sentinel.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindConstraint     Kind = "constraint"
	KindCredential     Kind = "credential"
	KindPersistence    Kind = "persistence"
	KindMalformed      Kind = "malformed_data"
	KindInvalid        Kind = "invalid_request"
	KindNotImplemented Kind = "not_implemented"
	KindInternal       Kind = "internal"
)

// Error is the structured error value returned through the query and auth
// surfaces. Message is safe to show to a user; Err carries the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil || e.Message == e.Err.Error() {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error of the given kind. The message defaults to the
// cause's text when empty.
func NewError(kind Kind, msg string, err error) *Error {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf reports the Kind of err. Errors that carry no *Error in their chain
// are KindInternal; nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}
