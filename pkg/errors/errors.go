// Package errors provides the coded error taxonomy shared by the
// resume-flow platform services. Every failure that crosses a package
// boundary is represented as an *Error carrying a stable machine code,
// a human-readable message, and an optional cause chain.
//
// # Error Categories
//
// Codes are grouped by category prefix, and the prefix alone determines
// how a transport adapter surfaces the error:
//
//   - VAL: invalid input (400)
//   - AUTH: authentication failures — malformed, expired, or forged
//     tokens, unknown signing keys (401)
//   - AUTHZ: the caller is authenticated but lacks a required role (403)
//   - NF: a referenced resource does not exist (404)
//   - CONF: the operation conflicts with current upstream state (409)
//   - INT: unexpected internal failures (500)
//   - UPSTREAM: the identity provider answered with a server-side
//     failure (502)
//   - UNAVAIL: the identity provider is unreachable or timed out (503)
//   - TIMEOUT: an operation exceeded its own deadline (504)
//
// # Usage
//
// Create an error:
//
//	err := errors.New(errors.CodeAuthTokenExpired, "token has expired")
//
// Wrap a transport-level cause:
//
//	err := errors.Wrap(err, errors.CodeUnavailableIdentityProvider,
//	    "JWKS fetch failed")
//
// Branch on category:
//
//	if errors.IsAuthentication(err) {
//	    w.Header().Set("WWW-Authenticate", "Bearer")
//	}
//
// Unexpected errors at the outermost boundary get a correlation id so
// operators can match a client-visible message to a log line:
//
//	return errors.Unexpected(err)
package errors
