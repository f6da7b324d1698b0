package auth

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{name: "standard bearer", header: "Bearer abc.def.ghi", expected: "abc.def.ghi"},
		{name: "lowercase bearer", header: "bearer abc.def.ghi", expected: "abc.def.ghi"},
		{name: "uppercase bearer", header: "BEARER abc.def.ghi", expected: "abc.def.ghi"},
		{name: "mixed case bearer", header: "BeArEr token123", expected: "token123"},
		{name: "empty header", header: "", expected: ""},
		{name: "no prefix", header: "abc.def.ghi", expected: ""},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", expected: ""},
		{name: "bearer without space", header: "Bearer", expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ExtractBearerToken(tt.header))
		})
	}
}

func TestSerializeIdentity_RoundTrip(t *testing.T) {
	t.Parallel()
	identity := &VerifiedIdentity{
		Subject:    "user-1",
		Username:   "jdoe",
		Email:      "jdoe@example.com",
		RealmRoles: []string{"user"},
		ClientRoles: map[string][]string{
			"resume-flow-api": {"editor"},
		},
	}

	encoded, err := SerializeIdentity(identity)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := DeserializeIdentity(encoded)
	require.NoError(t, err)
	assert.Equal(t, "user-1", decoded.Subject)
	assert.Equal(t, "jdoe", decoded.Username)
	assert.Equal(t, []string{"user"}, decoded.RealmRoles)
	assert.Equal(t, []string{"editor"}, decoded.ClientRoles["resume-flow-api"])
}

func TestSerializeIdentity_DropsRawClaims(t *testing.T) {
	t.Parallel()
	identity := &VerifiedIdentity{
		Subject: "user-1",
		Claims:  map[string]any{"session_state": "abc", "azp": "resume-flow-api"},
	}

	encoded, err := SerializeIdentity(identity)
	require.NoError(t, err)

	decoded, err := DeserializeIdentity(encoded)
	require.NoError(t, err)
	assert.Nil(t, decoded.Claims, "raw claims must not cross service boundaries")

	// Serialization must not mutate the original.
	assert.NotNil(t, identity.Claims)
}

func TestSerializeIdentity_Nil(t *testing.T) {
	t.Parallel()
	encoded, err := SerializeIdentity(nil)
	require.NoError(t, err)
	assert.Empty(t, encoded)
}

func TestDeserializeIdentity_Empty(t *testing.T) {
	t.Parallel()
	identity, err := DeserializeIdentity("")
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestDeserializeIdentity_InvalidBase64(t *testing.T) {
	t.Parallel()
	_, err := DeserializeIdentity("not!valid!base64!")
	assert.Error(t, err)
}

func TestDeserializeIdentity_InvalidJSON(t *testing.T) {
	t.Parallel()
	encoded := base64.RawURLEncoding.EncodeToString([]byte("{not json"))
	_, err := DeserializeIdentity(encoded)
	assert.Error(t, err)
}

func TestSerializeIdentity_SizeLimit(t *testing.T) {
	t.Parallel()
	identity := &VerifiedIdentity{
		Subject:    "user-1",
		RealmRoles: []string{strings.Repeat("x", MaxHeaderValueSize)},
	}

	_, err := SerializeIdentity(identity)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestSerializeCallChain_RoundTrip(t *testing.T) {
	t.Parallel()
	chain := &CallChain{
		OriginalSubject: "user-1",
		Callers: []CallerInfo{
			{ServiceName: "gateway", SubjectID: "svc-gw"},
			{ServiceName: "resume-api", SubjectID: "svc-api"},
		},
	}

	encoded, err := SerializeCallChain(chain)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := DeserializeCallChain(encoded)
	require.NoError(t, err)
	assert.Equal(t, "user-1", decoded.OriginalSubject)
	require.Len(t, decoded.Callers, 2)
	assert.Equal(t, "gateway", decoded.Callers[0].ServiceName)
	assert.Equal(t, "resume-api", decoded.Callers[1].ServiceName)
}

func TestSerializeCallChain_Nil(t *testing.T) {
	t.Parallel()
	encoded, err := SerializeCallChain(nil)
	require.NoError(t, err)
	assert.Empty(t, encoded)
}

func TestDeserializeCallChain_Empty(t *testing.T) {
	t.Parallel()
	chain, err := DeserializeCallChain("")
	require.NoError(t, err)
	assert.Nil(t, chain)
}

func TestDeserializeCallChain_InvalidBase64(t *testing.T) {
	t.Parallel()
	_, err := DeserializeCallChain("!!!")
	assert.Error(t, err)
}

func TestIdentityToHeaders(t *testing.T) {
	t.Parallel()
	identity := &VerifiedIdentity{
		Subject:    "user-1",
		Username:   "jdoe",
		RealmRoles: []string{"user"},
	}
	chain := &CallChain{OriginalSubject: "user-1"}

	headers, err := identityToHeaders(identity, "resume-api", chain)
	require.NoError(t, err)

	assert.Equal(t, "user-1", headers[HeaderIdentitySubject])
	assert.NotEmpty(t, headers[HeaderIdentity])
	assert.Equal(t, "resume-api", headers[HeaderCallerService])
	assert.NotEmpty(t, headers[HeaderCallChain])
}

func TestIdentityToHeaders_NilIdentity(t *testing.T) {
	t.Parallel()
	headers, err := identityToHeaders(nil, "resume-api", nil)
	require.NoError(t, err)
	assert.Nil(t, headers)
}

func TestIdentityToHeaders_MinimalIdentity(t *testing.T) {
	t.Parallel()
	headers, err := identityToHeaders(&VerifiedIdentity{Subject: "user-1"}, "", nil)
	require.NoError(t, err)

	assert.Equal(t, "user-1", headers[HeaderIdentitySubject])
	_, hasCaller := headers[HeaderCallerService]
	assert.False(t, hasCaller, "caller service header should be absent when empty")
	_, hasChain := headers[HeaderCallChain]
	assert.False(t, hasChain, "call chain header should be absent when nil")
}

func TestIdentityFromHeaders_RoundTrip(t *testing.T) {
	t.Parallel()
	identity := &VerifiedIdentity{
		Subject:    "user-1",
		Username:   "jdoe",
		RealmRoles: []string{"user", "editor"},
	}
	chain := &CallChain{
		OriginalSubject: "user-1",
		Callers:         []CallerInfo{{ServiceName: "gateway", SubjectID: "svc-gw"}},
	}

	headers, err := identityToHeaders(identity, "gateway", chain)
	require.NoError(t, err)

	gotIdentity, gotCaller, gotChain, err := identityFromHeaders(func(key string) string {
		return headers[key]
	})
	require.NoError(t, err)

	require.NotNil(t, gotIdentity)
	assert.Equal(t, "user-1", gotIdentity.Subject)
	assert.Equal(t, "jdoe", gotIdentity.Username)
	assert.Equal(t, []string{"user", "editor"}, gotIdentity.RealmRoles)
	assert.Equal(t, "gateway", gotCaller)
	require.NotNil(t, gotChain)
	assert.Equal(t, "user-1", gotChain.OriginalSubject)
}

func TestIdentityFromHeaders_NoSubject(t *testing.T) {
	t.Parallel()
	identity, caller, chain, err := identityFromHeaders(func(string) string { return "" })
	require.NoError(t, err)
	assert.Nil(t, identity)
	assert.Empty(t, caller)
	assert.Nil(t, chain)
}

func TestIdentityFromHeaders_SubjectOnly(t *testing.T) {
	t.Parallel()
	headers := map[string]string{HeaderIdentitySubject: "user-1"}

	identity, _, _, err := identityFromHeaders(func(key string) string {
		return headers[key]
	})
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "user-1", identity.Subject)
}

func TestIdentityFromHeaders_CorruptIdentity(t *testing.T) {
	t.Parallel()
	headers := map[string]string{
		HeaderIdentitySubject: "user-1",
		HeaderIdentity:        "%%%not-base64%%%",
	}

	_, _, _, err := identityFromHeaders(func(key string) string {
		return headers[key]
	})
	assert.Error(t, err)
}

func TestIdentityFromHeaders_CorruptCallChain(t *testing.T) {
	t.Parallel()
	headers := map[string]string{
		HeaderIdentitySubject: "user-1",
		HeaderCallChain:       "%%%not-base64%%%",
	}

	_, _, _, err := identityFromHeaders(func(key string) string {
		return headers[key]
	})
	assert.Error(t, err)
}
