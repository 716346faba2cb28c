package apperrors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind is the stable error category returned to API callers.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindUnauthorized         Kind = "unauthorized"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindInternal             Kind = "internal"
)

// Status returns the HTTP status code for a kind.
func (k Kind) Status() int {
	switch k {
	case KindInvalidInput:
		return fiber.StatusBadRequest
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	case KindPayloadTooLarge:
		return fiber.StatusRequestEntityTooLarge
	case KindUnsupportedMediaType:
		return fiber.StatusUnsupportedMediaType
	default:
		return fiber.StatusInternalServerError
	}
}

// KindForStatus maps an HTTP status back to a kind. Unknown client errors
// are invalid input; everything else is internal.
func KindForStatus(code int) Kind {
	switch code {
	case fiber.StatusBadRequest:
		return KindInvalidInput
	case fiber.StatusUnauthorized:
		return KindUnauthorized
	case fiber.StatusNotFound:
		return KindNotFound
	case fiber.StatusConflict:
		return KindConflict
	case fiber.StatusRequestEntityTooLarge:
		return KindPayloadTooLarge
	case fiber.StatusUnsupportedMediaType:
		return KindUnsupportedMediaType
	}
	if code >= 400 && code < 500 {
		return KindInvalidInput
	}
	return KindInternal
}

// Error is an application error carrying a kind, a client-safe message and
// the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message, nil)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string, err error) *Error {
	return New(KindUnauthorized, message, err)
}

// NotFound creates a 404 error.
func NotFound(message string, err error) *Error {
	return New(KindNotFound, message, err)
}

// Conflict creates a 409 error.
func Conflict(message string) *Error {
	return New(KindConflict, message, nil)
}

// PayloadTooLarge creates a 413 error.
func PayloadTooLarge(message string, err error) *Error {
	return New(KindPayloadTooLarge, message, err)
}

// UnsupportedMediaType creates a 415 error.
func UnsupportedMediaType(message string, err error) *Error {
	return New(KindUnsupportedMediaType, message, err)
}

// Internal wraps an unexpected failure. The message never includes the cause.
func Internal(err error) *Error {
	return New(KindInternal, "an internal error occurred", err)
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "an internal error occurred"
}
