package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFromClaims_FullProfile(t *testing.T) {
	t.Parallel()
	mc := jwt.MapClaims{
		"sub":                "user-1",
		"preferred_username": "jdoe",
		"email":              "jdoe@example.com",
		"email_verified":     true,
		"name":               "Jane Doe",
		"given_name":         "Jane",
		"family_name":        "Doe",
		"realm_access": map[string]any{
			"roles": []any{"user", "offline_access"},
		},
		"resource_access": map[string]any{
			"resume-flow-api": map[string]any{
				"roles": []any{"editor", "viewer"},
			},
			"account": map[string]any{
				"roles": []any{"view-profile"},
			},
		},
	}

	identity := identityFromClaims(mc)

	assert.Equal(t, "user-1", identity.Subject)
	assert.Equal(t, "jdoe", identity.Username)
	assert.Equal(t, "jdoe@example.com", identity.Email)
	assert.True(t, identity.EmailVerified)
	assert.Equal(t, "Jane Doe", identity.Name)
	assert.Equal(t, "Jane", identity.GivenName)
	assert.Equal(t, "Doe", identity.FamilyName)
	assert.Equal(t, []string{"user", "offline_access"}, identity.RealmRoles)
	assert.Equal(t, []string{"editor", "viewer"}, identity.ClientRoles["resume-flow-api"])
	assert.Equal(t, []string{"view-profile"}, identity.ClientRoles["account"])
}

func TestIdentityFromClaims_MinimalClaims(t *testing.T) {
	t.Parallel()
	identity := identityFromClaims(jwt.MapClaims{"sub": "user-1"})

	assert.Equal(t, "user-1", identity.Subject)
	assert.Empty(t, identity.Username)
	assert.Nil(t, identity.RealmRoles)
	assert.Nil(t, identity.ClientRoles)
	assert.Empty(t, identity.Roles())
}

func TestIdentityFromClaims_MalformedRoleClaims(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mc   jwt.MapClaims
	}{
		{
			name: "realm_access is not an object",
			mc:   jwt.MapClaims{"sub": "u1", "realm_access": "bogus"},
		},
		{
			name: "realm_access roles is not an array",
			mc:   jwt.MapClaims{"sub": "u1", "realm_access": map[string]any{"roles": "admin"}},
		},
		{
			name: "resource_access client entry is not an object",
			mc:   jwt.MapClaims{"sub": "u1", "resource_access": map[string]any{"api": 42}},
		},
		{
			name: "resource_access roles has non-string elements",
			mc: jwt.MapClaims{"sub": "u1", "resource_access": map[string]any{
				"api": map[string]any{"roles": []any{1, 2, 3}},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			identity := identityFromClaims(tt.mc)
			// Malformed role claims degrade to an empty role set.
			assert.Empty(t, identity.Roles())
		})
	}
}

func TestIdentityFromClaims_SkipsNonStringRoles(t *testing.T) {
	t.Parallel()
	mc := jwt.MapClaims{
		"sub": "u1",
		"realm_access": map[string]any{
			"roles": []any{"user", 42, "admin", nil},
		},
	}

	identity := identityFromClaims(mc)
	assert.Equal(t, []string{"user", "admin"}, identity.RealmRoles)
}

func TestIdentityFromClaims_PreservesRawClaims(t *testing.T) {
	t.Parallel()
	mc := jwt.MapClaims{
		"sub":           "u1",
		"session_state": "abc-123",
		"azp":           "resume-flow-api",
	}

	identity := identityFromClaims(mc)
	require.NotNil(t, identity.Claims)
	assert.Equal(t, "abc-123", identity.Claims["session_state"])
	assert.Equal(t, "resume-flow-api", identity.Claims["azp"])
}
