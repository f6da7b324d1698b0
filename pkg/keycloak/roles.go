package keycloak

import (
	"context"
	"net/http"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// RoleRepresentation mirrors the admin API's role resource.
type RoleRepresentation struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite"`
}

// clientRepresentation is the subset of the admin API's client resource
// needed to resolve a clientId to its internal UUID.
type clientRepresentation struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
}

// GetRealmRole fetches a realm role by name. A missing role yields
// [rferr.CodeNotFoundRole].
func (c *Client) GetRealmRole(ctx context.Context, name string) (*RoleRepresentation, error) {
	var role RoleRepresentation
	if err := c.doInto(ctx, http.MethodGet, c.config.RealmRoleURL(name), nil, &role); err != nil {
		if rferr.HasCode(err, rferr.CodeNotFound) {
			return nil, rferr.Newf(rferr.CodeNotFoundRole,
				"keycloak: realm role %q not found", name)
		}
		return nil, err
	}
	return &role, nil
}

// CreateRealmRole creates a non-composite realm role. An existing role
// of the same name yields [rferr.CodeConflictAlreadyExists].
func (c *Client) CreateRealmRole(ctx context.Context, name, description string) error {
	role := RoleRepresentation{
		Name:        name,
		Description: description,
		Composite:   false,
	}
	if _, err := c.do(ctx, http.MethodPost, c.config.RealmRolesURL(), role); err != nil {
		if rferr.IsConflict(err) {
			return rferr.Newf(rferr.CodeConflictAlreadyExists,
				"keycloak: realm role %q already exists", name)
		}
		return err
	}
	return nil
}

// AssignRealmRole grants a realm role to a user. The role is resolved
// by name first; assignment posts a singleton list to the user's realm
// role mapping.
func (c *Client) AssignRealmRole(ctx context.Context, userID, roleName string) error {
	role, err := c.GetRealmRole(ctx, roleName)
	if err != nil {
		return err
	}

	_, err = c.do(ctx, http.MethodPost, c.config.RealmRoleMappingURL(userID),
		[]RoleRepresentation{*role})
	return err
}

// AssignClientRole grants a client-level role to a user. clientID is
// the client's clientId (e.g., "resume-flow-api"); the internal UUID is
// resolved via the clients lookup endpoint.
func (c *Client) AssignClientRole(ctx context.Context, userID, clientID, roleName string) error {
	clientUUID, err := c.lookupClientUUID(ctx, clientID)
	if err != nil {
		return err
	}

	role, err := c.getClientRole(ctx, clientUUID, roleName)
	if err != nil {
		return err
	}

	_, err = c.do(ctx, http.MethodPost,
		c.config.ClientRoleMappingURL(userID, clientUUID),
		[]RoleRepresentation{*role})
	return err
}

// RevokeClientRole removes a client-level role from a user.
func (c *Client) RevokeClientRole(ctx context.Context, userID, clientID, roleName string) error {
	clientUUID, err := c.lookupClientUUID(ctx, clientID)
	if err != nil {
		return err
	}

	role, err := c.getClientRole(ctx, clientUUID, roleName)
	if err != nil {
		return err
	}

	_, err = c.do(ctx, http.MethodDelete,
		c.config.ClientRoleMappingURL(userID, clientUUID),
		[]RoleRepresentation{*role})
	return err
}

// lookupClientUUID resolves a clientId to the client's internal UUID.
func (c *Client) lookupClientUUID(ctx context.Context, clientID string) (string, error) {
	var clients []clientRepresentation
	if err := c.doInto(ctx, http.MethodGet, c.config.ClientsURL(clientID), nil, &clients); err != nil {
		return "", err
	}

	for _, client := range clients {
		if client.ClientID == clientID {
			return client.ID, nil
		}
	}
	return "", rferr.Newf(rferr.CodeNotFound,
		"keycloak: client %q not found in realm %q", clientID, c.config.Realm)
}

// getClientRole fetches a client role by name. A missing role yields
// [rferr.CodeNotFoundRole].
func (c *Client) getClientRole(ctx context.Context, clientUUID, name string) (*RoleRepresentation, error) {
	var role RoleRepresentation
	if err := c.doInto(ctx, http.MethodGet, c.config.ClientRoleURL(clientUUID, name), nil, &role); err != nil {
		if rferr.HasCode(err, rferr.CodeNotFound) {
			return nil, rferr.Newf(rferr.CodeNotFoundRole,
				"keycloak: client role %q not found", name)
		}
		return nil, err
	}
	return &role, nil
}
