package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// maxJWKSResponseSize caps the JWKS endpoint response body at 1 MB to
// prevent resource exhaustion from a misbehaving identity provider.
const maxJWKSResponseSize = 1 << 20

// jwksResponse is the wire format of the realm's certs endpoint.
type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey is a single JSON Web Key as published by Keycloak. Only the
// fields needed for RSA and EC public key reconstruction are decoded.
type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`

	// RSA fields.
	N string `json:"n"`
	E string `json:"e"`

	// EC fields.
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// jwksKeySet caches the realm's signing keys, refreshing them when the
// cached set goes stale or when a token references a key id that is not
// in the cached set (key rotation). At most one forced refresh is
// performed per lookup, so a flood of tokens with bogus key ids cannot
// hammer the identity provider.
//
// jwksKeySet is safe for concurrent use by multiple goroutines.
type jwksKeySet struct {
	url    string
	ttl    time.Duration
	client HTTPClient

	mu        sync.RWMutex
	keys      map[string]any // kid -> *rsa.PublicKey or *ecdsa.PublicKey
	fetchedAt time.Time
}

func newJWKSKeySet(url string, ttl time.Duration, client HTTPClient) *jwksKeySet {
	return &jwksKeySet{
		url:    url,
		ttl:    ttl,
		client: client,
	}
}

// key returns the public key for the given key id, fetching or
// refreshing the key set as needed. An unknown key id after a refresh
// yields [rferr.CodeAuthUnknownSigningKey]; a failed fetch yields
// [rferr.CodeUnavailableIdentityProvider].
func (s *jwksKeySet) key(ctx context.Context, kid string) (any, error) {
	s.mu.RLock()
	if s.fresh() {
		if key, ok := s.keys[kid]; ok {
			s.mu.RUnlock()
			return key, nil
		}
	}
	s.mu.RUnlock()

	// Either the set is stale or the kid is unknown. Refresh exactly
	// once under the write lock; a concurrent refresh that already
	// resolved the kid makes ours a fast no-op re-check first.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fresh() {
		if key, ok := s.keys[kid]; ok {
			return key, nil
		}
	}

	keys, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.keys = keys
	s.fetchedAt = time.Now()

	key, ok := s.keys[kid]
	if !ok {
		return nil, rferr.Newf(rferr.CodeAuthUnknownSigningKey,
			"auth: token signed with unknown key id %q", kid)
	}
	return key, nil
}

// fresh reports whether the cached key set exists and is within its TTL.
// Callers must hold at least the read lock.
func (s *jwksKeySet) fresh() bool {
	return s.keys != nil && time.Since(s.fetchedAt) < s.ttl
}

// fetch retrieves the JWKS from the certs endpoint and parses every
// usable key. Keys of unsupported types are skipped rather than failing
// the whole fetch, so an exotic key in the set does not break
// verification for tokens signed with the supported ones.
func (s *jwksKeySet) fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"auth: failed to build JWKS request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, rferr.Wrapf(err, rferr.CodeUnavailableIdentityProvider,
			"auth: failed to fetch JWKS from %s", s.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rferr.Newf(rferr.CodeUnavailableIdentityProvider,
			"auth: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize))
	if err != nil {
		return nil, rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"auth: failed to read JWKS response")
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, rferr.Wrap(err, rferr.CodeUnavailableIdentityProvider,
			"auth: failed to parse JWKS response")
	}

	keys := make(map[string]any, len(jwks.Keys))
	for _, jwk := range jwks.Keys {
		if jwk.Kid == "" {
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}

		switch jwk.Kty {
		case "RSA":
			pub, err := parseRSAPublicKey(jwk.N, jwk.E)
			if err != nil {
				continue
			}
			keys[jwk.Kid] = pub
		case "EC":
			pub, err := parseECPublicKey(jwk.Crv, jwk.X, jwk.Y)
			if err != nil {
				continue
			}
			keys[jwk.Kid] = pub
		}
	}

	if len(keys) == 0 {
		return nil, rferr.New(rferr.CodeUnavailableIdentityProvider,
			"auth: JWKS response contains no usable signing keys")
	}

	return keys, nil
}

// parseRSAPublicKey reconstructs an RSA public key from the base64url
// encoded modulus and exponent of a JWK.
func parseRSAPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus encoding: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent encoding: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, fmt.Errorf("invalid exponent value")
	}

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// parseECPublicKey reconstructs an ECDSA public key from the curve name
// and base64url encoded coordinates of a JWK.
func parseECPublicKey(crv, xB64, yB64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xB64)
	if err != nil {
		return nil, fmt.Errorf("invalid x coordinate encoding: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yB64)
	if err != nil {
		return nil, fmt.Errorf("invalid y coordinate encoding: %w", err)
	}

	x := new(big.Int).SetBytes(xBytes)
	y := new(big.Int).SetBytes(yBytes)
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("point is not on curve %s", crv)
	}

	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
