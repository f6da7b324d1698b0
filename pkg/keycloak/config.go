// Package keycloak provides an administrative client for a Keycloak
// realm: user and role management through the admin REST API, session
// operations through the OpenID Connect endpoints, and the service
// account token plumbing both require.
//
// The client authenticates with the client-credentials grant, caches
// the admin access token until the identity provider rejects it, and
// retries transient failures with exponential backoff. All operations
// take a context.Context and return coded platform errors.
package keycloak

import (
	"net/url"
	"strings"
	"time"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// Secret type — prevents accidental logging of sensitive values
// ---------------------------------------------------------------------------

// Secret is a string type that redacts its value in String(), GoString(),
// and MarshalText() to prevent accidental exposure in logs, JSON output,
// or fmt.Printf. The actual value is only accessible via the
// [Secret.Value] method.
type Secret string

const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder.
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string.
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the
// redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds the connection settings for the Keycloak admin client.
type Config struct {
	// BaseURL is the base URL of the Keycloak server, without a trailing
	// slash (e.g., "http://localhost:8080").
	BaseURL string `json:"base_url" env:"URL" envDefault:"http://localhost:8080" yaml:"base_url"`

	// Realm is the realm the client administers.
	Realm string `json:"realm" env:"REALM" envDefault:"resume-flow" yaml:"realm"`

	// ClientID is the confidential client used for the client-credentials
	// grant. Its service account needs the realm-management roles for the
	// admin operations it performs (manage-users, manage-realm).
	ClientID string `json:"client_id" env:"CLIENT_ID" envDefault:"resume-flow-api" yaml:"client_id"`

	// ClientSecret is the client's secret. Required.
	ClientSecret Secret `json:"client_secret" env:"CLIENT_SECRET" yaml:"client_secret" required:"true"`

	// HTTPTimeout bounds each individual HTTP request. Defaults to 10s.
	HTTPTimeout time.Duration `json:"http_timeout" env:"HTTP_TIMEOUT" envDefault:"10s" yaml:"http_timeout"`

	// MaxRetries is the total number of attempts for a retryable admin
	// request, including the first. Defaults to 3.
	MaxRetries int `json:"max_retries" env:"MAX_RETRIES" envDefault:"3" yaml:"max_retries"`

	// RetryBaseDelay is the backoff delay before the second attempt after
	// a connection failure; subsequent delays double. Defaults to 1s.
	RetryBaseDelay time.Duration `json:"retry_base_delay" env:"RETRY_BASE_DELAY" envDefault:"1s" yaml:"retry_base_delay"`
}

// DefaultConfig returns a Config with defaults matching a local
// development Keycloak. ClientSecret must still be provided.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8080",
		Realm:          "resume-flow",
		ClientID:       "resume-flow-api",
		HTTPTimeout:    10 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 1 * time.Second,
	}
}

// Validate checks the configuration for logical correctness and returns
// a *[rferr.Error] with code [rferr.CodeValidation] if any field is
// invalid.
func (c *Config) Validate() *rferr.Error {
	if c.BaseURL == "" {
		return rferr.New(rferr.CodeValidation, "keycloak: base URL must not be empty")
	}
	if c.Realm == "" {
		return rferr.New(rferr.CodeValidation, "keycloak: realm must not be empty")
	}
	if c.ClientID == "" {
		return rferr.New(rferr.CodeValidation, "keycloak: client id must not be empty")
	}
	if c.ClientSecret.Value() == "" {
		return rferr.New(rferr.CodeValidationRequired, "keycloak: client secret is required")
	}
	if c.HTTPTimeout <= 0 {
		return rferr.New(rferr.CodeValidation, "keycloak: HTTP timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return rferr.New(rferr.CodeValidation, "keycloak: max retries must be at least 1")
	}
	if c.RetryBaseDelay <= 0 {
		return rferr.New(rferr.CodeValidation, "keycloak: retry base delay must be positive")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Derived endpoints
// ---------------------------------------------------------------------------

// Issuer returns the realm's issuer URL, {base}/realms/{realm}.
func (c *Config) Issuer() string {
	return strings.TrimRight(c.BaseURL, "/") + "/realms/" + c.Realm
}

// TokenURL returns the realm's OpenID Connect token endpoint.
func (c *Config) TokenURL() string {
	return c.Issuer() + "/protocol/openid-connect/token"
}

// UserInfoURL returns the realm's OpenID Connect userinfo endpoint.
func (c *Config) UserInfoURL() string {
	return c.Issuer() + "/protocol/openid-connect/userinfo"
}

// JWKSURL returns the realm's certs endpoint.
func (c *Config) JWKSURL() string {
	return c.Issuer() + "/protocol/openid-connect/certs"
}

// adminRealmURL returns {base}/admin/realms/{realm}.
func (c *Config) adminRealmURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/admin/realms/" + c.Realm
}

// UserURL returns the admin endpoint for a single user.
func (c *Config) UserURL(userID string) string {
	return c.adminRealmURL() + "/users/" + url.PathEscape(userID)
}

// RealmRoleMappingURL returns the realm-level role mapping endpoint for
// a user.
func (c *Config) RealmRoleMappingURL(userID string) string {
	return c.UserURL(userID) + "/role-mappings/realm"
}

// ClientRoleMappingURL returns the client-level role mapping endpoint
// for a user. clientUUID is the client's internal id, not its clientId.
func (c *Config) ClientRoleMappingURL(userID, clientUUID string) string {
	return c.UserURL(userID) + "/role-mappings/clients/" + url.PathEscape(clientUUID)
}

// RealmRolesURL returns the realm roles collection endpoint.
func (c *Config) RealmRolesURL() string {
	return c.adminRealmURL() + "/roles"
}

// RealmRoleURL returns the endpoint for a single realm role by name.
func (c *Config) RealmRoleURL(name string) string {
	return c.RealmRolesURL() + "/" + url.PathEscape(name)
}

// ClientsURL returns the clients lookup endpoint, filtered to the given
// clientId.
func (c *Config) ClientsURL(clientID string) string {
	return c.adminRealmURL() + "/clients?clientId=" + url.QueryEscape(clientID)
}

// ClientRoleURL returns the endpoint for a single client role by name.
// clientUUID is the client's internal id.
func (c *Config) ClientRoleURL(clientUUID, name string) string {
	return c.adminRealmURL() + "/clients/" + url.PathEscape(clientUUID) + "/roles/" + url.PathEscape(name)
}
