package apperrors

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// RequestIDLocal is the Fiber locals key the requestid middleware writes to.
const RequestIDLocal = "requestid"

// Body is the JSON error envelope: {"error": {...}}.
type Body struct {
	Error Detail `json:"error"`
}

// Detail describes one failure.
type Detail struct {
	Kind      Kind              `json:"kind"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// FieldError is an invalid-input error with per-field messages.
type FieldError struct {
	Err    *Error
	Fields map[string]string
}

func (e *FieldError) Error() string {
	return e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// InvalidFields creates a 400 error listing the offending fields.
func InvalidFields(message string, fields map[string]string, err error) *FieldError {
	return &FieldError{Err: New(KindInvalidInput, message, err), Fields: fields}
}

// Respond writes err as a JSON error envelope with the status of its kind.
func Respond(c *fiber.Ctx, err error) error {
	kind := KindOf(err)
	detail := Detail{
		Kind:    kind,
		Message: MessageOf(err),
	}

	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		detail.Fields = fieldErr.Fields
	}
	if id, ok := c.Locals(RequestIDLocal).(string); ok {
		detail.RequestID = id
	}

	return c.Status(kind.Status()).JSON(Body{Error: detail})
}

// RespondStatus writes the envelope for a framework error, keeping its
// status code.
func RespondStatus(c *fiber.Ctx, status int, message string) error {
	kind := KindForStatus(status)
	if kind == KindInternal {
		message = "an internal error occurred"
	}
	detail := Detail{Kind: kind, Message: message}
	if id, ok := c.Locals(RequestIDLocal).(string); ok {
		detail.RequestID = id
	}
	return c.Status(status).JSON(Body{Error: detail})
}
