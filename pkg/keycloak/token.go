package keycloak

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// maxTokenResponseSize caps token endpoint response bodies at 1 MB.
const maxTokenResponseSize = 1 << 20

// tokenResponse is the relevant subset of the token endpoint's response.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
}

// AdminTokenCache holds the service account's admin access token,
// fetching it lazily via the client-credentials grant. The token is
// kept until [AdminTokenCache.Invalidate] is called; expiry is detected
// reactively, when the admin API rejects the token with 401/403 and the
// retry executor invalidates it.
//
// The single mutex serializes concurrent first fetches, so a burst of
// admin operations on a cold cache performs exactly one grant.
type AdminTokenCache struct {
	config Config
	client HTTPClient

	mu    sync.Mutex
	token string
}

// NewAdminTokenCache creates a token cache for the given configuration,
// using client for the token endpoint requests.
func NewAdminTokenCache(cfg Config, client HTTPClient) *AdminTokenCache {
	return &AdminTokenCache{
		config: cfg,
		client: client,
	}
}

// Token returns the cached admin access token, performing a
// client-credentials grant if none is cached. A failed grant yields
// [rferr.CodeUnavailableIdentityProvider].
func (c *AdminTokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret.Value()},
	}

	resp, err := postForm(ctx, c.client, c.config.TokenURL(), form)
	if err != nil {
		return "", rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"keycloak: failed to reach token endpoint")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return "", rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"keycloak: failed to read token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", rferr.Newf(rferr.CodeUnavailableIdentityProvider,
			"keycloak: token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"keycloak: failed to parse token response")
	}
	if tr.AccessToken == "" {
		return "", rferr.New(rferr.CodeUnavailableIdentityProvider,
			"keycloak: token response contains no access token")
	}

	c.token = tr.AccessToken
	return c.token, nil
}

// Invalidate drops the cached token unconditionally. The next call to
// [AdminTokenCache.Token] performs a fresh grant.
func (c *AdminTokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// postForm submits a form-encoded POST through the injected HTTP client.
func postForm(ctx context.Context, client HTTPClient, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return client.Do(req)
}
