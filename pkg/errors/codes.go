package errors

// Code is a stable, machine-readable error code of the form
// CATEGORY_NNN. The category prefix decides the HTTP status a transport
// adapter maps the error to; the numeric suffix distinguishes the exact
// condition so clients and alerts can react to specific failures
// (an expired token is handled differently from a forged one).
//
// Codes never change once assigned.
type Code string

// Error code categories and their HTTP mappings:
//
//	VAL_xxx      - validation errors (400)
//	AUTH_xxx     - authentication errors (401)
//	AUTHZ_xxx    - authorization errors (403)
//	NF_xxx       - not found errors (404)
//	CONF_xxx     - conflict errors (409)
//	INT_xxx      - internal errors (500)
//	UPSTREAM_xxx - identity-provider server failures (502)
//	UNAVAIL_xxx  - identity provider unreachable (503)
//	TIMEOUT_xxx  - local deadline exceeded (504)
const (
	// Validation errors (VAL_xxx) - HTTP 400

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// One code per token failure mode so callers can distinguish an
	// expired session (re-login) from a forged token (reject).

	// CodeAuthentication indicates a general authentication failure,
	// including tokens rejected for reasons the verifier cannot
	// classify more precisely.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthTokenExpired indicates the token's exp claim is in the past.
	CodeAuthTokenExpired Code = "AUTH_002"

	// CodeAuthMalformedToken indicates the token cannot be decoded at
	// all or its header lacks a key id.
	CodeAuthMalformedToken Code = "AUTH_003"

	// CodeAuthUnknownSigningKey indicates the token references a key id
	// absent from the published key set even after a forced refresh.
	CodeAuthUnknownSigningKey Code = "AUTH_004"

	// CodeAuthInvalidAudience indicates the aud claim does not include
	// the configured client.
	CodeAuthInvalidAudience Code = "AUTH_005"

	// CodeAuthInvalidIssuer indicates the iss claim does not match the
	// configured realm issuer.
	CodeAuthInvalidIssuer Code = "AUTH_006"

	// CodeAuthInvalidSignature indicates the signature did not verify
	// against the resolved public key.
	CodeAuthInvalidSignature Code = "AUTH_007"

	// CodeAuthTokenRefreshFailed indicates the service-level admin token
	// kept being rejected after the full retry budget.
	CodeAuthTokenRefreshFailed Code = "AUTH_008"

	// Authorization errors (AUTHZ_xxx) - HTTP 403

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationDenied indicates access to a resource is denied.
	CodeAuthorizationDenied Code = "AUTHZ_002"

	// CodeAuthzInsufficientRole indicates the verified token carries
	// none of the roles an endpoint requires.
	CodeAuthzInsufficientRole Code = "AUTHZ_003"

	// Not found errors (NF_xxx) - HTTP 404

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundUser indicates the referenced identity-provider user
	// does not exist.
	CodeNotFoundUser Code = "NF_002"

	// CodeNotFoundRole indicates the referenced realm or client role
	// does not exist.
	CodeNotFoundRole Code = "NF_003"

	// Conflict errors (CONF_xxx) - HTTP 409

	// CodeConflict indicates a general conflict error.
	CodeConflict Code = "CONF_001"

	// CodeConflictAlreadyExists indicates the resource already exists.
	CodeConflictAlreadyExists Code = "CONF_002"

	// Internal errors (INT_xxx) - HTTP 500

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_002"

	// Upstream errors (UPSTREAM_xxx) - HTTP 502
	// The identity provider was reached but answered with a failure
	// that is its own, not ours.

	// CodeUpstreamServerError indicates the identity provider returned
	// a 5xx status on a management call.
	CodeUpstreamServerError Code = "UPSTREAM_001"

	// CodeUpstreamUnexpectedStatus indicates the identity provider
	// returned a status outside every handled class.
	CodeUpstreamUnexpectedStatus Code = "UPSTREAM_002"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableIdentityProvider indicates the identity provider's
	// discovery, token, or management endpoint was unreachable or timed
	// out after all retries.
	CodeUnavailableIdentityProvider Code = "UNAVAIL_002"

	// CodeUnavailableCache indicates the identity cache backend was
	// unreachable.
	CodeUnavailableCache Code = "UNAVAIL_003"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutCache indicates a cache operation exceeded its deadline.
	CodeTimeoutCache Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
