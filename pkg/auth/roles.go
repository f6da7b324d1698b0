package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// identityFromClaims builds a VerifiedIdentity from a verified claim
// set. Roles come from both the realm-level realm_access.roles claim
// and every client entry under resource_access; authorization treats
// the two sources as equivalent grants.
//
// Missing or malformed claims yield zero-valued fields rather than
// errors: the token has already been cryptographically verified, and
// role checks against an empty role set simply deny.
func identityFromClaims(mc jwt.MapClaims) *VerifiedIdentity {
	identity := &VerifiedIdentity{
		Subject:       stringClaim(mc, "sub"),
		Username:      stringClaim(mc, "preferred_username"),
		Email:         stringClaim(mc, "email"),
		EmailVerified: boolClaim(mc, "email_verified"),
		Name:          stringClaim(mc, "name"),
		GivenName:     stringClaim(mc, "given_name"),
		FamilyName:    stringClaim(mc, "family_name"),
		RealmRoles:    realmRoles(mc),
		ClientRoles:   clientRoles(mc),
		Claims:        map[string]any(mc),
	}
	return identity
}

// realmRoles extracts realm_access.roles from the claim set.
func realmRoles(mc jwt.MapClaims) []string {
	access, ok := mc["realm_access"].(map[string]any)
	if !ok {
		return nil
	}
	return stringSlice(access["roles"])
}

// clientRoles extracts resource_access.<client>.roles for every client
// listed in the claim set.
func clientRoles(mc jwt.MapClaims) map[string][]string {
	access, ok := mc["resource_access"].(map[string]any)
	if !ok || len(access) == 0 {
		return nil
	}

	roles := make(map[string][]string, len(access))
	for client, v := range access {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if rs := stringSlice(entry["roles"]); len(rs) > 0 {
			roles[client] = rs
		}
	}
	if len(roles) == 0 {
		return nil
	}
	return roles
}

// stringSlice converts a decoded JSON array to []string, skipping
// non-string elements.
func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringClaim(mc jwt.MapClaims, name string) string {
	s, _ := mc[name].(string)
	return s
}

func boolClaim(mc jwt.MapClaims, name string) bool {
	b, _ := mc[name].(bool)
	return b
}
