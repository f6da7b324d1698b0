// Package auth verifies Keycloak-issued access tokens and propagates
// the resulting identity across resume-flow service boundaries.
//
// Token Verification:
//
// [KeycloakVerifier] validates RS256/ES256 bearer tokens against the
// realm's published JWKS, checking signature, expiration, audience, and
// issuer, and resolving the caller's roles from both realm-level and
// client-level grants. Role requirements are enforced per call: the
// verifier succeeds when the token carries at least one of the roles
// an endpoint demands.
//
// Identity Propagation:
//
// When a request flows through multiple services, the original caller's
// identity must be preserved for authorization and audit purposes. This
// package provides gRPC interceptors, HTTP middleware, and an HTTP
// round tripper that transparently carry identity context across
// service boundaries.
//
// Security:
//
// Forwarded identity headers are never trusted blindly. Every service
// in the chain must verify the bearer token independently using a
// [TokenVerifier]. Claims are serialized as base64url-encoded JSON for
// safe transport in headers and gRPC metadata.
package auth

import (
	"context"
	"sort"
)

// VerifiedIdentity is the outcome of a successful token verification.
// It carries the standard OIDC profile claims Keycloak embeds in access
// tokens plus the caller's resolved roles.
//
// VerifiedIdentity is treated as immutable after construction; callers
// must not modify the role slices or the Claims map.
type VerifiedIdentity struct {
	// Subject is the stable user identifier (the "sub" claim), a UUID
	// assigned by the identity provider.
	Subject string `json:"subject"`

	// Username is the preferred_username claim.
	Username string `json:"username,omitempty"`

	// Email is the user's email address, when present in the token.
	Email string `json:"email,omitempty"`

	// EmailVerified reports whether the identity provider has verified
	// the email address.
	EmailVerified bool `json:"email_verified,omitempty"`

	// Name, GivenName, and FamilyName are the OIDC profile claims.
	Name       string `json:"name,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`

	// RealmRoles holds the realm-level roles from realm_access.roles.
	RealmRoles []string `json:"realm_roles,omitempty"`

	// ClientRoles maps client id to the client-level roles from
	// resource_access.<client>.roles.
	ClientRoles map[string][]string `json:"client_roles,omitempty"`

	// Claims is the full verified claim set, for callers that need
	// claims beyond the extracted profile fields.
	Claims map[string]any `json:"claims,omitempty"`
}

// Roles returns the union of the identity's realm roles and all
// client roles, deduplicated and sorted. Authorization checks treat
// both sources as equivalent grants.
func (id *VerifiedIdentity) Roles() []string {
	seen := make(map[string]struct{}, len(id.RealmRoles))
	for _, r := range id.RealmRoles {
		seen[r] = struct{}{}
	}
	for _, roles := range id.ClientRoles {
		for _, r := range roles {
			seen[r] = struct{}{}
		}
	}

	union := make([]string, 0, len(seen))
	for r := range seen {
		union = append(union, r)
	}
	sort.Strings(union)
	return union
}

// HasRole reports whether the identity carries the given role at the
// realm level or under any client.
func (id *VerifiedIdentity) HasRole(role string) bool {
	for _, r := range id.RealmRoles {
		if r == role {
			return true
		}
	}
	for _, roles := range id.ClientRoles {
		for _, r := range roles {
			if r == role {
				return true
			}
		}
	}
	return false
}

// HasAnyRole reports whether the identity carries at least one of the
// given roles. An empty requirement is trivially satisfied.
func (id *VerifiedIdentity) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if id.HasRole(role) {
			return true
		}
	}
	return false
}

// TokenVerifier verifies bearer tokens and extracts the identity they
// represent. Implementations are responsible for verifying token
// signatures, expiration, audience, issuer, and role requirements.
//
// This interface is used by gRPC interceptors and HTTP middleware to
// authenticate incoming requests; [KeycloakVerifier] is the production
// implementation.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type TokenVerifier interface {
	// Verify validates the given token string and returns the identity
	// it represents. When requiredRoles is non-empty, the token must
	// carry at least one of them; otherwise Verify returns an error
	// with code [rferr.CodeAuthzInsufficientRole].
	//
	// The context may carry deadlines, cancellation signals, and
	// tracing information that verifiers should respect.
	Verify(ctx context.Context, token string, requiredRoles ...string) (*VerifiedIdentity, error)
}

// CallerInfo records the identity of a service in the call chain.
// When service A calls service B on behalf of a user, CallerInfo
// captures service A's identity so the full request path can be
// reconstructed for audit and debugging purposes.
type CallerInfo struct {
	// ServiceName is the name of the calling service (e.g.,
	// "resume-api", "export-worker").
	ServiceName string `json:"service_name"`

	// SubjectID is the authenticated subject of the calling service's
	// own credential, not the original requester's.
	SubjectID string `json:"subject_id"`
}

// CallChain tracks the full chain of services that have handled a
// request, enabling audit logging and understanding of the complete
// request path through the system.
//
// Example chain: User -> API Gateway -> Resume API -> Export Worker.
type CallChain struct {
	// OriginalSubject is the subject of the request originator
	// (typically an end user).
	OriginalSubject string `json:"original_subject"`

	// Callers is an ordered list of services that forwarded the
	// request. The first entry is the first service that received the
	// request from the originator; the last entry made the current call.
	Callers []CallerInfo `json:"callers"`
}

// MaxCallChainDepth is the maximum number of callers tracked in a
// CallChain. When a chain exceeds this depth, the oldest intermediate
// callers are truncated to keep the serialized header well within
// HTTP header size limits.
const MaxCallChainDepth = 32

// Depth returns the number of services in the call chain.
func (c *CallChain) Depth() int {
	return len(c.Callers)
}

// AppendCaller adds a new caller to the end of the call chain and
// returns the updated chain. The original CallChain is not modified.
//
// If appending the caller would exceed [MaxCallChainDepth], the oldest
// intermediate callers are dropped while preserving the most recent
// ones.
func (c *CallChain) AppendCaller(caller CallerInfo) *CallChain {
	callers := make([]CallerInfo, len(c.Callers), len(c.Callers)+1)
	copy(callers, c.Callers)
	callers = append(callers, caller)

	if len(callers) > MaxCallChainDepth {
		callers = callers[len(callers)-MaxCallChainDepth:]
	}

	return &CallChain{
		OriginalSubject: c.OriginalSubject,
		Callers:         callers,
	}
}
