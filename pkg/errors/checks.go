package errors

import (
	"errors"
)

// AsError attempts to convert an error to an *Error, traversing the
// chain with errors.As. Returns the Error and true on success.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the error code from an error, or the empty string if
// the error is nil or not an *Error.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether the error carries the given code.
//
// Example:
//
//	if errors.HasCode(err, errors.CodeAuthTokenExpired) {
//	    // prompt the client to refresh its session
//	}
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsValidation reports whether the error is a validation error (VAL_xxx).
func IsValidation(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "VAL"
}

// IsAuthentication reports whether the error is an authentication
// error (AUTH_xxx). Transport adapters use this to attach the
// WWW-Authenticate: Bearer challenge to the 401 response.
func IsAuthentication(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "AUTH"
}

// IsAuthorization reports whether the error is an authorization error
// (AUTHZ_xxx).
func IsAuthorization(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "AUTHZ"
}

// IsNotFound reports whether the error is a not found error (NF_xxx).
func IsNotFound(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "NF"
}

// IsConflict reports whether the error is a conflict error (CONF_xxx).
func IsConflict(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "CONF"
}

// IsInternal reports whether the error is an internal error (INT_xxx).
func IsInternal(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "INT"
}

// IsUpstream reports whether the error is an identity-provider server
// failure (UPSTREAM_xxx).
func IsUpstream(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "UPSTREAM"
}

// IsUnavailable reports whether the error is a service unavailable
// error (UNAVAIL_xxx).
func IsUnavailable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "UNAVAIL"
}

// IsTimeout reports whether the error is a timeout error (TIMEOUT_xxx).
func IsTimeout(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "TIMEOUT"
}

// IsRetryable reports whether a caller may reasonably retry the failed
// operation. Only unavailability and timeouts qualify; upstream 5xx
// responses are terminal per call.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code.Category() {
	case "TIMEOUT", "UNAVAIL":
		return true
	default:
		return false
	}
}

// IsClientError reports whether the error maps to a 4xx HTTP status.
func IsClientError(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code.Category() {
	case "VAL", "AUTH", "AUTHZ", "NF", "CONF":
		return true
	default:
		return false
	}
}

// IsServerError reports whether the error maps to a 5xx HTTP status.
func IsServerError(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code.Category() {
	case "INT", "UPSTREAM", "UNAVAIL", "TIMEOUT":
		return true
	default:
		return false
	}
}
