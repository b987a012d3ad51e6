// Package errors defines domain errors shared by services and handlers.
package errors

import (
	stderrors "errors"
	"net/http"
)

// DomainError is an error with a stable machine code and an HTTP status.
type DomainError struct {
	Code    string
	Message string
	Status  int
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on Code so wrapped copies still compare equal.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *DomainError) WithMessage(msg string) *DomainError {
	return &DomainError{Code: e.Code, Message: msg, Status: e.Status}
}

func newError(code, message string, status int) *DomainError {
	return &DomainError{Code: code, Message: message, Status: status}
}

// As unwraps err into a DomainError.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// StatusOf returns the HTTP status for err, 500 for unknown errors.
func StatusOf(err error) int {
	if de, ok := As(err); ok && de.Status != 0 {
		return de.Status
	}
	return http.StatusInternalServerError
}

var (
	ErrValidation = newError("VALIDATION_FAILED", "validation failed", http.StatusBadRequest)
	ErrNotFound   = newError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrConflict   = newError("CONFLICT", "resource already exists", http.StatusConflict)
	ErrForbidden  = newError("FORBIDDEN", "insufficient permissions", http.StatusForbidden)
	ErrInternal   = newError("INTERNAL", "internal server error", http.StatusInternalServerError)
)
