package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// DetailCorrelationID is the Details key under which Unexpected stores
// the generated correlation id.
const DetailCorrelationID = "correlation_id"

// New creates a new Error with the given code and message.
//
// Example:
//
//	err := errors.New(errors.CodeAuthMalformedToken, "token header has no kid")
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the given code and formatted message.
//
// Example:
//
//	err := errors.Newf(errors.CodeNotFoundUser, "user %q not found", userID)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a code and message. The wrapped
// error becomes the Cause. If err is nil, Wrap returns nil.
//
// Example:
//
//	resp, err := client.Do(req)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeUnavailableIdentityProvider,
//	        "token endpoint unreachable")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a code and formatted message.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Validation creates a new validation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// NotFound creates a new not found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// NotFoundf creates a new not found error with a formatted message.
//
// Example:
//
//	err := errors.NotFoundf("role %q not found in realm", roleName)
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// Unauthorized creates a new authentication error. Use this when a
// credential is missing or rejected for an unclassified reason;
// prefer the specific AUTH_xxx codes where the failure mode is known.
func Unauthorized(message string) *Error {
	return New(CodeAuthentication, message)
}

// Forbidden creates a new authorization error. Use this when the
// authenticated caller lacks a required role.
func Forbidden(message string) *Error {
	return New(CodeAuthorization, message)
}

// Conflict creates a new conflict error.
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// Internal creates a new internal error. The message must not expose
// internal detail to callers.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Unavailable creates a new service unavailable error.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Timeout creates a new timeout error.
func Timeout(message string) *Error {
	return New(CodeTimeout, message)
}

// Unexpected converts an arbitrary error into an internal Error tagged
// with a fresh correlation id. The id appears in both the message and
// Details so a caller-visible response can be matched to the log line
// that recorded the full cause. If err is already an *Error it is
// returned unchanged: classified failures keep their code and need no
// correlation id.
//
// Example:
//
//	identity, err := verifier.Verify(ctx, token)
//	if err != nil {
//	    e := errors.Unexpected(err)
//	    slog.ErrorContext(ctx, "verification failed", "error", e)
//	    return nil, e
//	}
func Unexpected(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	id := uuid.NewString()
	return &Error{
		Code:    CodeInternal,
		Message: fmt.Sprintf("[%s] an unexpected error occurred", id),
		Cause:   err,
		Details: map[string]any{DetailCorrelationID: id},
	}
}

// FromError converts a standard error to an *Error. If the error is
// already an *Error anywhere in its chain, that value is returned;
// otherwise it is wrapped as a generic internal error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
