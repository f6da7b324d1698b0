package errors

import (
	"fmt"
	"net/http"
)

// Error is the structured error type used throughout the platform.
// It implements the standard error interface and carries a machine
// code, a message safe to show to callers, and an optional cause.
//
// Error values are treated as immutable after creation; the With*
// methods return copies.
type Error struct {
	// Code is the machine-readable error code (e.g., "AUTH_002").
	Code Code

	// Message is the human-readable error message. It may be surfaced
	// to end users and must not contain credentials, tokens, or
	// internal paths.
	Message string

	// Cause is the underlying error, if any. Access it through
	// Unwrap() / errors.Is / errors.As.
	Cause error

	// Details carries additional structured context: the upstream HTTP
	// status, the roles an endpoint required, a correlation id.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, supporting errors.Is and
// errors.As from the standard library.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code implied by the error's
// category. Transport adapters call this at the boundary; the core
// never deals in HTTP statuses directly.
func (e *Error) HTTPStatus() int {
	switch e.Code.Category() {
	case "VAL":
		return http.StatusBadRequest
	case "AUTH":
		return http.StatusUnauthorized
	case "AUTHZ":
		return http.StatusForbidden
	case "NF":
		return http.StatusNotFound
	case "CONF":
		return http.StatusConflict
	case "INT":
		return http.StatusInternalServerError
	case "UPSTREAM":
		return http.StatusBadGateway
	case "UNAVAIL":
		return http.StatusServiceUnavailable
	case "TIMEOUT":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails returns a copy of the error with the given details merged
// in. The original error is not modified.
func (e *Error) WithDetails(details map[string]any) *Error {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: merged,
	}
}

// WithDetail returns a copy of the error with a single detail added.
// The original error is not modified.
func (e *Error) WithDetail(key string, value any) *Error {
	merged := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		merged[k] = v
	}
	merged[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: merged,
	}
}

// Format implements fmt.Formatter. %v prints the standard form, %+v
// includes details and the full cause chain.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
