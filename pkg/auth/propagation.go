package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Header and metadata key constants for identity propagation.
// These keys are used in both HTTP headers and gRPC metadata to carry
// identity information across service boundaries.
//
// All custom headers use the "x-" prefix to distinguish them from standard
// HTTP headers. Values that contain structured data (the identity, the
// call chain) are base64url-encoded JSON to ensure safe transport.
const (
	// HeaderAuthorization is the standard authorization header carrying the
	// bearer token. This is the primary authentication credential used by
	// server interceptors and middleware to verify the caller.
	HeaderAuthorization = "authorization"

	// HeaderIdentitySubject carries the subject of the verified identity.
	// This is set by server-side interceptors after token verification and
	// propagated by client-side interceptors to downstream services.
	HeaderIdentitySubject = "x-identity-subject"

	// HeaderIdentity carries the full verified identity as a
	// base64url-encoded JSON object, including username, email, and the
	// resolved realm and client roles.
	//
	// Security: the value is encoded for transport safety, not for
	// confidentiality, and downstream services must not treat it as an
	// authentication credential. Each service re-verifies the bearer
	// token; the propagated identity exists for audit and logging.
	HeaderIdentity = "x-identity"

	// HeaderCallerService carries the name of the service that forwarded the
	// request. This allows the receiving service to identify its immediate
	// upstream caller for audit and authorization purposes.
	HeaderCallerService = "x-caller-service"

	// HeaderCallChain carries the full call chain as a base64url-encoded JSON
	// object. This tracks every service that has handled the request, enabling
	// complete audit trails through the distributed system.
	HeaderCallChain = "x-call-chain"
)

// MaxHeaderValueSize is the maximum allowed size in bytes for a single
// serialized header value (identity or call chain). This limit prevents
// oversized headers that would be rejected by HTTP/2 (default
// SETTINGS_MAX_HEADER_LIST_SIZE is 16 KB) or HTTP/1.1 servers (commonly
// limited to 8 KB per header).
//
// The value 8192 (8 KB) is a conservative limit that works with all
// standard HTTP implementations. Individual values are checked
// independently; total header budget is left to the transport layer.
const MaxHeaderValueSize = 8192

// bearerPrefix is the standard "Bearer " prefix for authorization tokens.
const bearerPrefix = "Bearer "

// ExtractBearerToken extracts the token from an authorization header value.
// It handles the "Bearer " prefix case-insensitively.
// Returns an empty string if the header is empty or does not have a bearer prefix.
func ExtractBearerToken(authHeader string) string {
	if len(authHeader) <= len(bearerPrefix) {
		return ""
	}
	// Case-insensitive comparison for "Bearer " prefix.
	prefix := authHeader[:len(bearerPrefix)]
	if !strings.EqualFold(prefix, bearerPrefix) {
		return ""
	}
	return authHeader[len(bearerPrefix):]
}

// SerializeIdentity encodes a VerifiedIdentity as a base64url-encoded JSON
// string. This format is safe for use in HTTP headers and gRPC metadata
// values.
//
// The full claim set is dropped before encoding: downstream services get
// the extracted profile fields and roles, while raw claims stay within the
// service that verified the token. This keeps the header compact and avoids
// forwarding claims a downstream service has no use for.
//
// Returns an empty string if identity is nil.
// Returns an error if the identity cannot be marshaled to JSON or if the
// encoded output exceeds [MaxHeaderValueSize].
func SerializeIdentity(identity *VerifiedIdentity) (string, error) {
	if identity == nil {
		return "", nil
	}

	wire := *identity
	wire.Claims = nil

	data, err := json.Marshal(&wire)
	if err != nil {
		return "", fmt.Errorf("auth: failed to marshal identity: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(data)
	if len(encoded) > MaxHeaderValueSize {
		return "", fmt.Errorf("auth: serialized identity size %d exceeds maximum %d bytes", len(encoded), MaxHeaderValueSize)
	}
	return encoded, nil
}

// DeserializeIdentity decodes a base64url-encoded JSON string into a
// VerifiedIdentity. Returns nil if the encoded string is empty.
// Returns an error if the string cannot be decoded or parsed.
func DeserializeIdentity(encoded string) (*VerifiedIdentity, error) {
	if encoded == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode identity: %w", err)
	}
	var identity VerifiedIdentity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("auth: failed to unmarshal identity: %w", err)
	}
	return &identity, nil
}

// SerializeCallChain encodes a CallChain as a base64url-encoded JSON string.
// This format is safe for use in HTTP headers and gRPC metadata values.
//
// Returns an empty string if chain is nil.
// Returns an error if the chain cannot be marshaled to JSON or if the
// encoded output exceeds [MaxHeaderValueSize].
func SerializeCallChain(chain *CallChain) (string, error) {
	if chain == nil {
		return "", nil
	}
	data, err := json.Marshal(chain)
	if err != nil {
		return "", fmt.Errorf("auth: failed to marshal call chain: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(data)
	if len(encoded) > MaxHeaderValueSize {
		return "", fmt.Errorf("auth: serialized call chain size %d exceeds maximum %d bytes", len(encoded), MaxHeaderValueSize)
	}
	return encoded, nil
}

// DeserializeCallChain decodes a base64url-encoded JSON string into a CallChain.
// Returns nil if the encoded string is empty.
// Returns an error if the string cannot be decoded or parsed.
func DeserializeCallChain(encoded string) (*CallChain, error) {
	if encoded == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode call chain: %w", err)
	}
	var chain CallChain
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, fmt.Errorf("auth: failed to unmarshal call chain: %w", err)
	}
	return &chain, nil
}

// identityToHeaders extracts identity information into a set of key-value
// pairs suitable for use as HTTP headers or gRPC metadata.
// Returns nil if identity is nil.
func identityToHeaders(identity *VerifiedIdentity, callerService string, chain *CallChain) (map[string]string, error) {
	if identity == nil {
		return nil, nil
	}

	headers := map[string]string{
		HeaderIdentitySubject: identity.Subject,
	}

	encoded, err := SerializeIdentity(identity)
	if err != nil {
		return nil, err
	}
	if encoded != "" {
		headers[HeaderIdentity] = encoded
	}

	// Include caller service if set.
	if callerService != "" {
		headers[HeaderCallerService] = callerService
	}

	// Serialize call chain if present.
	if chain != nil {
		chainEncoded, err := SerializeCallChain(chain)
		if err != nil {
			return nil, err
		}
		headers[HeaderCallChain] = chainEncoded
	}

	return headers, nil
}

// headerGetter retrieves a single value for a given header or metadata key.
type headerGetter func(key string) string

// identityFromHeaders reconstructs the propagated identity and call chain
// metadata from a set of key-value pairs (HTTP headers or gRPC metadata).
//
// Returns a nil identity if no identity subject is found in the headers.
// When the full identity header is absent or empty, a minimal identity
// carrying only the subject is returned.
func identityFromHeaders(getValue headerGetter) (*VerifiedIdentity, string, *CallChain, error) {
	subject := getValue(HeaderIdentitySubject)
	if subject == "" {
		return nil, "", nil, nil
	}

	identity, err := DeserializeIdentity(getValue(HeaderIdentity))
	if err != nil {
		return nil, "", nil, fmt.Errorf("auth: invalid propagated identity: %w", err)
	}
	if identity == nil {
		identity = &VerifiedIdentity{Subject: subject}
	} else if identity.Subject == "" {
		identity.Subject = subject
	}

	// Extract caller service.
	callerService := getValue(HeaderCallerService)

	// Deserialize call chain.
	var chain *CallChain
	if encoded := getValue(HeaderCallChain); encoded != "" {
		chain, err = DeserializeCallChain(encoded)
		if err != nil {
			return nil, "", nil, fmt.Errorf("auth: invalid propagated call chain: %w", err)
		}
	}

	return identity, callerService, chain, nil
}
