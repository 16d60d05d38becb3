// Package errs defines the typed error taxonomy the HTTP layer maps to
// status codes: validation failures, conflicting writes, and missing
// entities, each carrying the HTTP status its caller should answer with
// instead of every call site picking its own literal.
package errs

import "net/http"

// HTTPError is implemented by every error in this package. Handlers accept
// errors that may or may not satisfy it and fall back to a 500 when they
// don't, so business-layer code can still return a plain error without the
// HTTP layer panicking.
type HTTPError interface {
	error
	HTTPStatus() int
	ErrorCode() string
}

// ValidationError reports caller input that failed a validation rule —
// answered with 422 Unprocessable Entity.
type ValidationError struct {
	Code    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}
func (e *ValidationError) Unwrap() error     { return e.Err }
func (e *ValidationError) HTTPStatus() int   { return http.StatusUnprocessableEntity }
func (e *ValidationError) ErrorCode() string { return orDefault(e.Code, "validation_failed") }

// ConflictError reports a write that collided with a uniqueness invariant
// or an idempotent replay whose request body doesn't match — answered with
// 409 Conflict.
type ConflictError struct {
	Code    string
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}
func (e *ConflictError) Unwrap() error     { return e.Err }
func (e *ConflictError) HTTPStatus() int   { return http.StatusConflict }
func (e *ConflictError) ErrorCode() string { return orDefault(e.Code, "conflict") }

// NotFoundError reports that no entity matched the caller's scope —
// answered with 404 Not Found.
type NotFoundError struct {
	Code    string
	Message string
	Err     error
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}
func (e *NotFoundError) Unwrap() error     { return e.Err }
func (e *NotFoundError) HTTPStatus() int   { return http.StatusNotFound }
func (e *NotFoundError) ErrorCode() string { return orDefault(e.Code, "not_found") }

func orDefault(code, fallback string) string {
	if code != "" {
		return code
	}
	return fallback
}
