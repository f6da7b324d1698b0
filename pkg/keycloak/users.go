package keycloak

import (
	"context"
	"net/http"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// UserRepresentation mirrors the admin API's user resource. Pointer
// fields distinguish "absent" from zero values on update.
type UserRepresentation struct {
	ID            string              `json:"id,omitempty"`
	Username      string              `json:"username,omitempty"`
	Email         string              `json:"email,omitempty"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Enabled       *bool               `json:"enabled,omitempty"`
	EmailVerified *bool               `json:"emailVerified,omitempty"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
}

// UserUpdate carries the profile fields an update may change. Nil
// fields are left untouched; the update is a read-merge-write against
// the current representation, never a blind overwrite.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string

	// PhoneNumber is stored as the single-element "phoneNumber" user
	// attribute, the convention the realm's user profile uses.
	PhoneNumber *string
}

// phoneNumberAttribute is the user attribute key carrying the phone
// number.
const phoneNumberAttribute = "phoneNumber"

// GetUser fetches a user by id. A missing user yields
// [rferr.CodeNotFoundUser].
func (c *Client) GetUser(ctx context.Context, userID string) (*UserRepresentation, error) {
	var user UserRepresentation
	if err := c.doInto(ctx, http.MethodGet, c.config.UserURL(userID), nil, &user); err != nil {
		if rferr.HasCode(err, rferr.CodeNotFound) {
			return nil, rferr.Newf(rferr.CodeNotFoundUser,
				"keycloak: user %q not found", userID)
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies the non-nil fields of update to the user's
// profile. The current representation is fetched first so unrelated
// fields and attributes survive the write.
func (c *Client) UpdateUser(ctx context.Context, userID string, update UserUpdate) error {
	user, err := c.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.PhoneNumber != nil {
		if user.Attributes == nil {
			user.Attributes = make(map[string][]string)
		}
		user.Attributes[phoneNumberAttribute] = []string{*update.PhoneNumber}
	}

	_, err = c.do(ctx, http.MethodPut, c.config.UserURL(userID), user)
	return err
}

// SetUserAttribute sets a single user attribute to a single value,
// preserving all other attributes.
func (c *Client) SetUserAttribute(ctx context.Context, userID, name, value string) error {
	user, err := c.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if user.Attributes == nil {
		user.Attributes = make(map[string][]string)
	}
	user.Attributes[name] = []string{value}

	_, err = c.do(ctx, http.MethodPut, c.config.UserURL(userID), user)
	return err
}

// DeleteUser removes a user from the realm. A missing user yields
// [rferr.CodeNotFoundUser].
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	if _, err := c.do(ctx, http.MethodDelete, c.config.UserURL(userID), nil); err != nil {
		if rferr.HasCode(err, rferr.CodeNotFound) {
			return rferr.Newf(rferr.CodeNotFoundUser,
				"keycloak: user %q not found", userID)
		}
		return err
	}
	return nil
}
