package service

import (
	"errors"
	"fmt"

	"moracollect-api/internal/validate"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a request contradicts stored state, such as
	// reusing a record id for a different upload.
	ErrConflict = errors.New("conflict")
	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// detailError carries a client facing message for a sentinel error.
type detailError struct {
	kind   error
	detail string
}

func (e *detailError) Error() string { return e.detail }
func (e *detailError) Unwrap() error { return e.kind }

func notFound(detail string) error  { return &detailError{kind: ErrNotFound, detail: detail} }
func conflict(detail string) error  { return &detailError{kind: ErrConflict, detail: detail} }
func forbidden(detail string) error { return &detailError{kind: ErrForbidden, detail: detail} }

// Detail returns the client facing message of a service error, or "" when
// the error carries none.
func Detail(err error) string {
	var de *detailError
	if errors.As(err, &de) {
		return de.detail
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
	}
	return ""
}

// fromValidate turns a validator error into a *ValidationError; other errors
// pass through.
func fromValidate(err error) error {
	var ve *validate.Error
	if errors.As(err, &ve) {
		return &ValidationError{Field: ve.Field, Message: ve.Message}
	}
	return err
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
