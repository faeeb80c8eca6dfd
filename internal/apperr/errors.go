// Package apperr defines the error taxonomy shared by every marketplace
// component and the mapping from error kind to HTTP status.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindForbidden
	KindNotFound
)

const (
	DefaultValidationMessage     = "A validation error has occurred. Please check the request and try again."
	DefaultAuthenticationMessage = "User could not be authenticated"
	DefaultForbiddenMessage      = "User was not allowed to perform requested action."
	DefaultNotFoundMessage       = "The requested item could not be found."
	InternalMessage              = "internal server error"
)

// Error is a classified failure with a message that is safe to return to
// the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

var (
	ErrValidation     = &Error{Kind: KindValidation, Message: DefaultValidationMessage}
	ErrAuthentication = &Error{Kind: KindAuthentication, Message: DefaultAuthenticationMessage}
	ErrForbidden      = &Error{Kind: KindForbidden, Message: DefaultForbiddenMessage}
	ErrNotFound       = &Error{Kind: KindNotFound, Message: DefaultNotFoundMessage}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, apperr.ErrForbidden) matches any forbidden error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, message, fallback string) *Error {
	if message == "" {
		message = fallback
	}
	return &Error{Kind: kind, Message: message}
}

func Validation(message string) *Error {
	return newError(KindValidation, message, DefaultValidationMessage)
}

func Authentication(message string) *Error {
	return newError(KindAuthentication, message, DefaultAuthenticationMessage)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, message, DefaultForbiddenMessage)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, message, DefaultNotFoundMessage)
}

// Wrap attaches a cause to a classified error without changing its message.
func Wrap(e *Error, cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-facing message for err. Unclassified errors
// never expose their text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return InternalMessage
}

func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
