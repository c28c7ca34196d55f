package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an error for callers that need to render or map it.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindAuthRequired ErrorKind = "auth_required"
	KindValidation   ErrorKind = "validation_error"
	KindNotFound     ErrorKind = "not_found"
	KindBackend      ErrorKind = "backend_error"
)

var (
	ErrAuthRequired = errors.New("authentication required")
	ErrNotFound     = errors.New("record not found")
)

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// BackendError wraps a failure of the entity store or another dependency.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// WrapBackend wraps err as a BackendError unless it already belongs to the
// taxonomy. A nil err stays nil.
func WrapBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindBackend {
		return err
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// KindOf reports the taxonomy kind of err. Errors outside the taxonomy are
// treated as backend failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrAuthRequired):
		return KindAuthRequired
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindBackend
	}
}
