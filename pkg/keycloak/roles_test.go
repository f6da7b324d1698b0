package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// registerClientLookup wires the clients endpoint so "resume-flow-api"
// resolves to the internal UUID "client-uuid-1".
func registerClientLookup(t *testing.T, stub *idpStub) {
	t.Helper()
	stub.handle("/admin/realms/resume-flow/clients", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "resume-flow-api", r.URL.Query().Get("clientId"))
		writeJSON(t, w, []map[string]any{
			{"id": "client-uuid-1", "clientId": "resume-flow-api"},
		})
	})
}

func TestGetRealmRole(t *testing.T) {
	t.Parallel()
	stub := newIDPStub(t)
	stub.handle("/admin/realms/resume-flow/roles/premium", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"id":          "role-1",
			"name":        "premium",
			"description": "Premium subscribers",
		})
	})
	client := stub.client()

	role, err := client.GetRealmRole(context.Background(), "premium")
	require.NoError(t, err)
	assert.Equal(t, "role-1", role.ID)
	assert.Equal(t, "premium", role.Name)
}

func TestGetRealmRole_NotFound(t *testing.T) {
	t.Parallel()
	stub := newIDPStub(t)
	stub.handle("/admin/realms/resume-flow/roles/ghost", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	client := stub.client()

	_, err := client.GetRealmRole(context.Background(), "ghost")
	requireCode(t, err, rferr.CodeNotFoundRole)
}

func TestCreateRealmRole(t *testing.T) {
	t.Parallel()
	stub := newIDPStub(t)
	stub.handle("/admin/realms/resume-flow/roles", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
	})
	client := stub.client()

	err := client.CreateRealmRole(context.Background(), "premium", "Premium subscribers")
	require.NoError(t, err)

	reqs := stub.requests()
	require.Len(t, reqs, 1)

	var role RoleRepresentation
	require.NoError(t, json.Unmarshal(reqs[0].Body, &role))
	assert.Equal(t, "premium", role.Name)
	assert.Equal(t, "Premium subscribers", role.Description)
	assert.False(t, role.Composite)
}

func TestCreateRealmRole_AlreadyExists(t *testing.T) {
	t.Parallel()
	stub := newIDPStub(t)
	stub.handle("/admin/realms/resume-flow/roles", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	client := stub.client()

	err := client.CreateRealmRole(context.Background(), "premium", "")
	requireCode(t, err, rferr.CodeConflictAlreadyExists)
}

func TestAssignRealmRole(t *testing.T) {
	t.Parallel()
	stub := newIDPStub(t)
	stub.handle("/admin/realms/resume-flow/roles/premium", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": "role-1", "name": "premium"})
	})
	stub.handle("/admin/realms/resume-flow/users/u1/role-mappings/realm", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	client := stub.client()

	err := client.AssignRealmRole(context.Background(), "u1", "premium")
	require.NoError(t, err)

	reqs := stub.requests()
	require.Len(t, reqs, 2)

	// The mapping POST carries a singleton list with the resolved role.
	var roles []RoleRepresentation
	require.NoError(t, json.Unmarshal(reqs[1].Body, &roles))
	require.Len(t, roles, 1)
	assert.Equal(t, "role-1", roles[0].ID)
	assert.Equal(t, "premium", roles[0].Name)
}

func TestAssignRealmRole_RoleMissing(t *testing.T) {
	t.Parallel()
	stub := newIDPStub(t)
	stub.handle("/admin/realms/resume-flow/roles/ghost", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	client := stub.client()

	err := client.AssignRealmRole(context.Background(), "u1", "ghost")
	requireCode(t, err, rferr.CodeNotFoundRole)
}

func TestAssignClientRole(t *testing.T) {
	t.Parallel()
	stub := newIDPStub(t)
	registerClientLookup(t, stub)
	stub.handle("/admin/realms/resume-flow/clients/client-uuid-1/roles/editor", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": "role-2", "name": "editor"})
	})
	stub.handle("/admin/realms/resume-flow/users/u1/role-mappings/clients/client-uuid-1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	client := stub.client()

	err := client.AssignClientRole(context.Background(), "u1", "resume-flow-api", "editor")
	require.NoError(t, err)

	reqs := stub.requests()
	require.Len(t, reqs, 3, "lookup, role fetch, mapping POST")

	var roles []RoleRepresentation
	require.NoError(t, json.Unmarshal(reqs[2].Body, &roles))
	require.Len(t, roles, 1)
	assert.Equal(t, "editor", roles[0].Name)
}

func TestAssignClientRole_ClientMissing(t *testing.T) {
	t.Parallel()
	stub := newIDPStub(t)
	stub.handle("/admin/realms/resume-flow/clients", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{})
	})
	client := stub.client()

	err := client.AssignClientRole(context.Background(), "u1", "resume-flow-api", "editor")
	requireCode(t, err, rferr.CodeNotFound)
}

func TestRevokeClientRole(t *testing.T) {
	t.Parallel()
	stub := newIDPStub(t)
	registerClientLookup(t, stub)
	stub.handle("/admin/realms/resume-flow/clients/client-uuid-1/roles/editor", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": "role-2", "name": "editor"})
	})

	var mappingMethod string
	stub.handle("/admin/realms/resume-flow/users/u1/role-mappings/clients/client-uuid-1", func(w http.ResponseWriter, r *http.Request) {
		mappingMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	})
	client := stub.client()

	err := client.RevokeClientRole(context.Background(), "u1", "resume-flow-api", "editor")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, mappingMethod)
}
