package auth

import (
	"log/slog"
	"net/http"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// HTTPMiddleware returns an HTTP middleware that extracts and verifies
// identity from incoming request headers.
//
// The middleware performs the following steps:
//  1. Extracts the "Authorization" header (bearer token)
//  2. Verifies the token using the provided [TokenVerifier], enforcing
//     requiredRoles when non-empty (the token must carry at least one)
//  3. Stores the resulting [VerifiedIdentity] in the request context
//  4. Extracts propagated caller service and call chain headers
//  5. Passes the enriched request to the next handler
//
// If no Authorization header is present or the token is invalid, the
// middleware responds with HTTP 401 Unauthorized and a WWW-Authenticate
// challenge. If the token is valid but lacks every required role, it
// responds with HTTP 403 Forbidden.
//
// The serviceName parameter identifies the current service for call chain
// tracking.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/api/resumes", handleResumes)
//	handler := auth.HTTPMiddleware(verifier, "resume-api")(mux)
//	http.ListenAndServe(":8080", handler)
func HTTPMiddleware(verifier TokenVerifier, serviceName string, requiredRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract the bearer token from the Authorization header.
			authHeader := r.Header.Get(HeaderAuthorization)
			token := ExtractBearerToken(authHeader)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="restricted"`)
				http.Error(w, "missing or invalid authorization header", http.StatusUnauthorized)
				return
			}

			// Verify the token and extract the identity.
			ctx := r.Context()
			identity, err := verifier.Verify(ctx, token, requiredRoles...)
			if err != nil {
				if rfError, ok := rferr.AsError(err); ok && rfError.HTTPStatus() == http.StatusForbidden {
					http.Error(w, "insufficient permissions", http.StatusForbidden)
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="restricted", error="invalid_token"`)
				http.Error(w, "token verification failed", http.StatusUnauthorized)
				return
			}

			// Store the verified identity in the request context.
			ctx = ContextWithIdentity(ctx, identity)

			// Extract propagated caller service header.
			if caller := r.Header.Get(HeaderCallerService); caller != "" {
				ctx = ContextWithCallerService(ctx, caller)
			}

			// Extract and reconstruct the call chain.
			if chainHeader := r.Header.Get(HeaderCallChain); chainHeader != "" {
				chain, err := DeserializeCallChain(chainHeader)
				if err != nil {
					// Log but don't fail — the identity was already verified.
					slog.WarnContext(ctx, "auth: failed to deserialize call chain from HTTP header",
						"error", err,
						"service", serviceName,
					)
				} else if chain != nil {
					ctx = ContextWithCallChain(ctx, chain)
				}
			}

			// Continue with the enriched context.
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles returns a middleware that enforces a role requirement on
// requests that have already passed [HTTPMiddleware]. The identity in the
// request context must carry at least one of the given roles; otherwise
// the middleware responds with HTTP 403 Forbidden.
//
// Use this to apply different role requirements per route while sharing
// one authentication middleware:
//
//	authed := auth.HTTPMiddleware(verifier, "resume-api")
//	admin := auth.RequireRoles("admin")
//	mux.Handle("/api/admin/", authed(admin(adminHandler)))
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="restricted"`)
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !identity.HasAnyRole(roles...) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PropagatingRoundTripper wraps an [http.RoundTripper] to propagate identity
// context to outgoing HTTP requests. It reads the identity, caller service,
// and call chain from the request context and adds them as HTTP headers.
//
// This is used when a service needs to make outgoing HTTP calls to downstream
// services while preserving the identity context for authorization and audit.
//
// Example:
//
//	client := &http.Client{
//	    Transport: auth.NewPropagatingRoundTripper("resume-api", http.DefaultTransport),
//	}
//	// Requests made with this client will automatically include identity headers.
//	resp, err := client.Do(req.WithContext(ctx))
type PropagatingRoundTripper struct {
	// serviceName identifies the current service in the call chain.
	serviceName string

	// wrapped is the underlying RoundTripper that performs the actual HTTP call.
	wrapped http.RoundTripper
}

// NewPropagatingRoundTripper creates a new PropagatingRoundTripper that wraps
// the given transport. If transport is nil, [http.DefaultTransport] is used.
//
// The serviceName parameter identifies the current service in the call chain.
func NewPropagatingRoundTripper(serviceName string, transport http.RoundTripper) *PropagatingRoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &PropagatingRoundTripper{
		serviceName: serviceName,
		wrapped:     transport,
	}
}

// RoundTrip executes the HTTP request with identity headers injected from
// the request context. If no identity is present in the context, the request
// proceeds without modification.
//
// RoundTrip implements the [http.RoundTripper] interface.
func (t *PropagatingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		return t.wrapped.RoundTrip(r)
	}

	// Build the call chain, appending the current service.
	chain, _ := CallChainFromContext(r.Context())
	if chain == nil {
		chain = &CallChain{OriginalSubject: identity.Subject}
	}
	chain = chain.AppendCaller(CallerInfo{
		ServiceName: t.serviceName,
		SubjectID:   identity.Subject,
	})

	headers, err := identityToHeaders(identity, t.serviceName, chain)
	if err != nil {
		// Log but don't fail — propagation failure should not prevent
		// the outgoing request.
		slog.WarnContext(r.Context(), "auth: failed to serialize identity for HTTP propagation",
			"error", err,
			"service", t.serviceName,
		)
		return t.wrapped.RoundTrip(r)
	}

	// Clone the request to avoid mutating the original.
	clone := r.Clone(r.Context())
	for k, v := range headers {
		clone.Header.Set(k, v)
	}

	return t.wrapped.RoundTrip(clone)
}
