package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"context"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// Secret type — prevents accidental logging of sensitive values
// ---------------------------------------------------------------------------

// Secret is a string type that redacts its value in String(), GoString(), and
// MarshalText() to prevent accidental exposure in logs, JSON output, or
// fmt.Printf. The actual value is only accessible via the [Secret.Value]
// method, which should be called only where the raw value is truly needed
// (e.g., submitting a client secret to the token endpoint).
type Secret string

// secretRedacted is the placeholder text shown instead of the actual secret
// value when the secret is printed, formatted, or serialized.
const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder, preventing the secret from being
// printed via fmt.Println, log.Printf, or similar functions.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder, preventing the secret from being
// printed via fmt.Printf("%#v", secret).
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string. This is the only way to access the
// underlying value and should be used only where the raw secret is required.
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the redacted
// placeholder. This prevents the secret from leaking into JSON, YAML, or
// any other text-based serialization format.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// ---------------------------------------------------------------------------
// HTTPClient interface
// ---------------------------------------------------------------------------

// HTTPClient abstracts the HTTP client used for fetching the realm's JWKS.
// This allows callers to provide custom HTTP clients with specific timeouts,
// transport settings, or middleware, and allows tests to inject mocks.
//
// The standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ---------------------------------------------------------------------------
// VerifierConfig — configuration for the Keycloak token verifier
// ---------------------------------------------------------------------------

// VerifierConfig holds the configuration for [KeycloakVerifier]. It points
// the verifier at a realm, controls audience validation, caching behavior,
// and clock skew tolerance.
type VerifierConfig struct {
	// BaseURL is the base URL of the Keycloak server, without a trailing
	// slash (e.g., "http://localhost:8080").
	BaseURL string `json:"base_url" env:"URL" envDefault:"http://localhost:8080" yaml:"base_url"`

	// Realm is the Keycloak realm whose tokens are accepted. The expected
	// "iss" claim is derived as BaseURL + "/realms/" + Realm.
	Realm string `json:"realm" env:"REALM" envDefault:"resume-flow" yaml:"realm"`

	// Audience is the expected "aud" claim. If empty, the audience claim
	// is not validated. Typically set to the service's own client id.
	Audience string `json:"audience,omitempty" env:"AUDIENCE" yaml:"audience"`

	// JWKSCacheTTL is the time a fetched key set is considered fresh
	// before being refreshed from the realm's certs endpoint. A token
	// referencing an unknown key id additionally triggers one forced
	// refresh regardless of freshness, to pick up rotated keys. Must be
	// non-negative. Defaults to 1 hour.
	JWKSCacheTTL time.Duration `json:"jwks_cache_ttl" env:"JWKS_CACHE_TTL" envDefault:"1h" yaml:"jwks_cache_ttl"`

	// IdentityCacheTTL is the maximum time a verified identity is cached
	// before re-verification is required. The effective TTL for a token
	// is the minimum of this value and the token's remaining lifetime
	// (exp - now). Must be non-negative. Defaults to 5 minutes.
	IdentityCacheTTL time.Duration `json:"identity_cache_ttl" env:"IDENTITY_CACHE_TTL" envDefault:"5m" yaml:"identity_cache_ttl"`

	// IdentityCacheMaxSize is the maximum number of entries in the
	// default in-memory identity cache. Ignored when Cache is provided.
	// Must be greater than zero. Defaults to 10000.
	IdentityCacheMaxSize int `json:"identity_cache_max_size" env:"IDENTITY_CACHE_MAX_SIZE" envDefault:"10000" yaml:"identity_cache_max_size"`

	// ClockSkew is the maximum allowed clock difference between the
	// verifier and the identity provider. Tokens within this window of
	// their expiration or not-before times are still considered valid.
	// Must be non-negative. Defaults to 30 seconds.
	ClockSkew time.Duration `json:"clock_skew" env:"CLOCK_SKEW" envDefault:"30s" yaml:"clock_skew"`

	// HTTPClient is the HTTP client used for fetching the JWKS. If nil,
	// a default [http.Client] with a 10-second timeout is used.
	HTTPClient HTTPClient `json:"-" yaml:"-"`

	// Cache is the identity cache backing the verifier. If nil, an
	// in-memory cache bounded by IdentityCacheMaxSize is used. Provide a
	// [RedisIdentityCache] to share verification results across replicas.
	Cache IdentityCache `json:"-" yaml:"-"`
}

// maxTokenSize is the maximum accepted size for a JWT token string (8 KB).
// Tokens larger than this are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// Issuer returns the expected "iss" claim for tokens of the configured
// realm.
func (c *VerifierConfig) Issuer() string {
	return strings.TrimRight(c.BaseURL, "/") + "/realms/" + c.Realm
}

// JWKSURL returns the realm's certs endpoint, from which the verifier
// fetches signing keys.
func (c *VerifierConfig) JWKSURL() string {
	return c.Issuer() + "/protocol/openid-connect/certs"
}

// Validate checks the configuration for logical correctness and returns a
// *[rferr.Error] with code [rferr.CodeValidation] if any field is invalid.
func (c *VerifierConfig) Validate() *rferr.Error {
	if c.BaseURL == "" {
		return rferr.New(rferr.CodeValidation, "auth: base URL must not be empty")
	}
	if c.Realm == "" {
		return rferr.New(rferr.CodeValidation, "auth: realm must not be empty")
	}
	if c.JWKSCacheTTL < 0 {
		return rferr.New(rferr.CodeValidation, "auth: JWKS cache TTL must be non-negative")
	}
	if c.IdentityCacheTTL < 0 {
		return rferr.New(rferr.CodeValidation, "auth: identity cache TTL must be non-negative")
	}
	if c.ClockSkew < 0 {
		return rferr.New(rferr.CodeValidation, "auth: clock skew must be non-negative")
	}
	if c.Cache == nil && c.IdentityCacheMaxSize <= 0 {
		return rferr.New(rferr.CodeValidation, "auth: identity cache max size must be greater than zero")
	}
	return nil
}

// DefaultVerifierConfig returns a VerifierConfig with defaults matching a
// local development Keycloak (http://localhost:8080, realm "resume-flow").
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		BaseURL:              "http://localhost:8080",
		Realm:                "resume-flow",
		JWKSCacheTTL:         1 * time.Hour,
		IdentityCacheTTL:     5 * time.Minute,
		IdentityCacheMaxSize: 10000,
		ClockSkew:            30 * time.Second,
	}
}

// ---------------------------------------------------------------------------
// KeycloakVerifier — JWKS-backed token verification with caching and tracing
// ---------------------------------------------------------------------------

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/resumeflow/resumeflow-core/pkg/auth"

// KeycloakVerifier verifies Keycloak-issued access tokens against the
// realm's published JWKS, with identity caching, automatic key-rotation
// handling, and OpenTelemetry tracing. It implements the [TokenVerifier]
// interface.
//
// KeycloakVerifier is safe for concurrent use by multiple goroutines.
type KeycloakVerifier struct {
	config VerifierConfig
	tracer trace.Tracer
	keys   *jwksKeySet
	cache  IdentityCache
}

// Compile-time assertion that KeycloakVerifier implements TokenVerifier.
var _ TokenVerifier = (*KeycloakVerifier)(nil)

// NewKeycloakVerifier creates a new KeycloakVerifier with the given
// configuration. The configuration is validated before use; an error is
// returned if it is invalid.
//
// If cfg.HTTPClient is nil, a default [http.Client] with a 10-second
// timeout is used. If cfg.Cache is nil, a bounded in-memory cache is used.
func NewKeycloakVerifier(cfg VerifierConfig) (*KeycloakVerifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryIdentityCache(cfg.IdentityCacheMaxSize)
	}

	return &KeycloakVerifier{
		config: cfg,
		tracer: otel.Tracer(tracerName),
		keys:   newJWKSKeySet(cfg.JWKSURL(), cfg.JWKSCacheTTL, httpClient),
		cache:  cache,
	}, nil
}

// Verify validates the given token string and returns the identity it
// represents, enforcing the role requirement when one is given.
//
// The method performs the following steps:
//  1. Rejects empty or oversized tokens
//  2. Checks the identity cache
//  3. Parses the token without verification to read the key id
//  4. Resolves the signing key, forcing one key-set refresh if the key
//     id is unknown (key rotation)
//  5. Verifies signature, expiration, issuer, and audience
//  6. Caches the verified identity
//  7. Checks that the token carries at least one required role
//
// Returns a *[rferr.Error] with the appropriate error code on failure.
func (v *KeycloakVerifier) Verify(ctx context.Context, tokenStr string, requiredRoles ...string) (*VerifiedIdentity, error) {
	ctx, span := startSpan(ctx, v.tracer, "auth.Verify")
	defer span.End()

	if tokenStr == "" {
		err := rferr.New(rferr.CodeAuthMalformedToken, "auth: token must not be empty")
		finishSpan(span, err)
		return nil, err
	}
	if len(tokenStr) > maxTokenSize {
		err := rferr.New(rferr.CodeAuthMalformedToken, "auth: token exceeds maximum size")
		finishSpan(span, err)
		return nil, err
	}

	// Cache key is the SHA-256 hash of the token, so raw tokens are
	// never stored.
	hash := tokenHash(tokenStr)

	if identity, ok := v.cache.Get(ctx, hash); ok {
		span.SetAttributes(attribute.Bool("auth.cache_hit", true))
		if err := requireAnyRole(identity, requiredRoles); err != nil {
			finishSpan(span, err)
			return nil, err
		}
		return identity, nil
	}
	span.SetAttributes(attribute.Bool("auth.cache_hit", false))

	// Read the key id from the unverified header. The signature is
	// checked below, against the key this id resolves to.
	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil || unverified == nil {
		parseErr := rferr.New(rferr.CodeAuthMalformedToken, "auth: token is malformed")
		finishSpan(span, parseErr)
		return nil, parseErr
	}

	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		err := rferr.New(rferr.CodeAuthMalformedToken, "auth: token header has no kid")
		finishSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.kid", kid))

	key, err := v.keys.key(ctx, kid)
	if err != nil {
		classified := classifyError(err)
		finishSpan(span, classified)
		return nil, classified
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256"}),
		jwt.WithIssuer(v.config.Issuer()),
		jwt.WithLeeway(v.config.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if v.config.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.config.Audience))
	}

	token, err := jwt.Parse(tokenStr, func(*jwt.Token) (any, error) {
		return key, nil
	}, parserOpts...)
	if err != nil {
		classified := classifyError(err)
		finishSpan(span, classified)
		return nil, classified
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		err := rferr.New(rferr.CodeAuthentication, "auth: invalid token claims")
		finishSpan(span, err)
		return nil, err
	}

	identity := identityFromClaims(mc)
	span.SetAttributes(attribute.String("auth.subject", identity.Subject))

	// Cache for min(configured TTL, token remaining lifetime).
	if exp, expErr := mc.GetExpirationTime(); expErr == nil && exp != nil {
		ttl := v.config.IdentityCacheTTL
		if remaining := time.Until(exp.Time); remaining < ttl {
			ttl = remaining
		}
		if ttl > 0 {
			v.cache.Put(ctx, hash, identity, ttl)
		}
	}

	if err := requireAnyRole(identity, requiredRoles); err != nil {
		finishSpan(span, err)
		return nil, err
	}

	return identity, nil
}

// requireAnyRole returns an insufficient-role error unless the identity
// carries at least one of the required roles. An empty requirement always
// passes.
func requireAnyRole(identity *VerifiedIdentity, requiredRoles []string) *rferr.Error {
	if identity.HasAnyRole(requiredRoles...) {
		return nil
	}
	return rferr.New(rferr.CodeAuthzInsufficientRole,
		"auth: token carries none of the required roles").
		WithDetails(map[string]any{
			"required_roles": requiredRoles,
			"subject":        identity.Subject,
		})
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// tokenHash computes the SHA-256 hash of a token string and returns it
// as a hex-encoded string.
func tokenHash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// classifyError converts a JWT library error to an appropriate
// *rferr.Error. If the error is already an *rferr.Error, it is returned
// as-is.
func classifyError(err error) *rferr.Error {
	if err == nil {
		return nil
	}

	var rfError *rferr.Error
	if errors.As(err, &rfError) {
		return rfError
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return rferr.Wrap(err, rferr.CodeAuthTokenExpired, "auth: token has expired")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return rferr.Wrap(err, rferr.CodeAuthMalformedToken, "auth: token is malformed")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return rferr.Wrap(err, rferr.CodeAuthInvalidSignature, "auth: token signature is invalid")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return rferr.Wrap(err, rferr.CodeAuthInvalidAudience, "auth: token audience is invalid")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return rferr.Wrap(err, rferr.CodeAuthInvalidIssuer, "auth: token issuer is invalid")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return rferr.Wrap(err, rferr.CodeAuthentication, "auth: token is not yet valid")
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return rferr.Wrap(err, rferr.CodeAuthMalformedToken, "auth: token lacks a required claim")
	}

	return rferr.Wrap(err, rferr.CodeAuthentication, "auth: token verification failed")
}

// startSpan creates a new OpenTelemetry span with the given name. Returns
// the updated context and span.
func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// finishSpan records an error on the span if err is non-nil and sets the
// span status to Error. This is a helper for consistent error recording
// across verification paths.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
