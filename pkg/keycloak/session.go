package keycloak

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// TokenPair is the outcome of a successful token grant: the access
// token to present on requests and the refresh token for the next
// renewal.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
}

// RefreshSession exchanges a refresh token for a fresh token pair via
// the refresh_token grant. A rejected refresh token yields
// [rferr.CodeAuthentication]; an unreachable token endpoint yields
// [rferr.CodeUnavailableIdentityProvider].
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.RefreshSession")
	defer span.End()

	if refreshToken == "" {
		err := rferr.New(rferr.CodeValidationRequired,
			"keycloak: refresh token must not be empty")
		spanError(span, err)
		return nil, err
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret.Value()},
		"refresh_token": {refreshToken},
	}

	resp, err := postForm(ctx, c.http, c.config.TokenURL(), form)
	if err != nil {
		rfErr := rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"keycloak: failed to reach token endpoint")
		spanError(span, rfErr)
		return nil, rfErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		rfErr := rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"keycloak: failed to read token response")
		spanError(span, rfErr)
		return nil, rfErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rfErr := rferr.Newf(rferr.CodeAuthentication,
			"keycloak: session refresh rejected with status %d", resp.StatusCode)
		spanError(span, rfErr)
		return nil, rfErr
	}

	var pair TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		rfErr := rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"keycloak: failed to parse token response")
		spanError(span, rfErr)
		return nil, rfErr
	}
	return &pair, nil
}

// UserInfo fetches the OpenID Connect userinfo claims for an access
// token. A rejected token yields [rferr.CodeAuthentication].
func (c *Client) UserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.UserInfo")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserInfoURL(), nil)
	if err != nil {
		rfErr := rferr.Wrap(err, rferr.CodeInternal,
			"keycloak: failed to build userinfo request")
		spanError(span, rfErr)
		return nil, rfErr
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		rfErr := rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"keycloak: failed to reach userinfo endpoint")
		spanError(span, rfErr)
		return nil, rfErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		rfErr := rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"keycloak: failed to read userinfo response")
		spanError(span, rfErr)
		return nil, rfErr
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		rfErr := rferr.Newf(rferr.CodeAuthentication,
			"keycloak: userinfo rejected the access token (status %d)", resp.StatusCode)
		spanError(span, rfErr)
		return nil, rfErr
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		rfErr := rferr.Newf(rferr.CodeUpstreamUnexpectedStatus,
			"keycloak: unexpected status %d from userinfo", resp.StatusCode).
			WithDetail("status", resp.StatusCode)
		spanError(span, rfErr)
		return nil, rfErr
	}

	var claims map[string]any
	if err := json.Unmarshal(body, &claims); err != nil {
		rfErr := rferr.Wrap(err, rferr.CodeUpstreamUnexpectedStatus,
			"keycloak: failed to parse userinfo response")
		spanError(span, rfErr)
		return nil, rfErr
	}
	return claims, nil
}
