// Package apperr defines the error kinds the services report to their callers.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind names are part of the public API: clients branch on them.
type Kind string

const (
	KindValidation     Kind = "ValidationError"
	KindNotFound       Kind = "NotFoundError"
	KindConflict       Kind = "ConflictError"
	KindAuthorization  Kind = "AuthorizationError"
	KindAuthentication Kind = "AuthenticationError"
)

type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func Authorization(format string, args ...interface{}) *Error {
	return New(KindAuthorization, format, args...)
}

func Authentication(format string, args ...interface{}) *Error {
	return New(KindAuthentication, format, args...)
}

// From extracts the first *Error in err's chain.
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	e, ok := From(err)
	return ok && e.Kind == kind
}
