package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is reports whether target carries the same code, so cloned and wrapped
// variants still match their predefined sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrServiceUnavailable = New("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service unavailable")
)

// Enrollment outcomes. Each business failure carries its own code and message
// so callers never have to fall back to a generic error.
var (
	ErrSectionNotFound        = New("SECTION_NOT_FOUND", http.StatusNotFound, "subject section not found")
	ErrAlreadyEnrolledSection = New("ALREADY_ENROLLED_SECTION", http.StatusConflict, "you have already enrolled with this faculty for this subject")
	ErrAlreadyEnrolledSubject = New("ALREADY_ENROLLED_SUBJECT", http.StatusConflict, "you have already enrolled in this subject with another faculty")
	ErrSectionFull            = New("SECTION_FULL", http.StatusConflict, "this subject section is already full")
	ErrNotEnrolled            = New("NOT_ENROLLED", http.StatusNotFound, "you are not enrolled in this subject section")
	ErrContentionTimeout      = New("CONTENTION_TIMEOUT", http.StatusServiceUnavailable, "section is busy, please try again")
	ErrPersistence            = New("PERSISTENCE_FAILURE", http.StatusInternalServerError, "enrollment could not be saved")
	ErrCapacityViolation      = New("CAPACITY_VIOLATION", http.StatusInternalServerError, "section seat count out of bounds")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
