package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for
// keycloak spans.
const tracerName = "github.com/resumeflow/resumeflow-core/pkg/keycloak"

// maxResponseSize caps admin API response bodies at 1 MB.
const maxResponseSize = 1 << 20

// HTTPClient abstracts the HTTP client used for identity provider
// requests, allowing custom transports and test mocks. The standard
// [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the Keycloak admin API client. It authenticates with the
// configured service account, caches the admin token, and retries
// transient failures.
//
// Client is safe for concurrent use by multiple goroutines. Construct
// one per process and inject it; the token cache makes instances
// stateful, so ad-hoc construction per request wastes a token grant.
type Client struct {
	config Config
	http   HTTPClient
	tokens *AdminTokenCache
	tracer trace.Tracer
}

// NewClient creates a Client with the given configuration, backed by a
// default [http.Client] bounded by cfg.HTTPTimeout. The configuration
// is validated before use.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newClient(cfg, &http.Client{Timeout: cfg.HTTPTimeout}), nil
}

// NewFromHTTPClient creates a Client on top of an existing HTTP client.
// Intended for tests and for callers that need custom transports; the
// provided client is responsible for its own timeouts.
func NewFromHTTPClient(cfg Config, hc HTTPClient) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newClient(cfg, hc), nil
}

func newClient(cfg Config, hc HTTPClient) *Client {
	return &Client{
		config: cfg,
		http:   hc,
		tokens: NewAdminTokenCache(cfg, hc),
		tracer: otel.Tracer(tracerName),
	}
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() Config {
	return c.config
}

// do executes one admin API request with the full retry state machine:
//
//   - a fresh admin token is obtained per attempt (cached or granted)
//   - 2xx returns the decoded response body (nil for empty bodies)
//   - 401/403 invalidates the token and retries immediately; exhausting
//     the budget yields [rferr.CodeAuthTokenRefreshFailed]
//   - 404 fails fast with [rferr.CodeNotFound]
//   - 409 fails fast with [rferr.CodeConflict]
//   - 5xx fails fast with [rferr.CodeUpstreamServerError]
//   - connection failures back off (RetryBaseDelay doubling per attempt)
//     and retry; exhausting the budget yields
//     [rferr.CodeUnavailableIdentityProvider]
//   - any other status fails fast with
//     [rferr.CodeUpstreamUnexpectedStatus], the status in Details
//
// Backoff sleeps honor ctx cancellation. body, when non-nil, is
// JSON-encoded once and resent on every attempt.
func (c *Client) do(ctx context.Context, method, rawURL string, body any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "keycloak."+method,
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("url.full", rawURL),
		))
	defer span.End()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			rfErr := rferr.Wrap(err, rferr.CodeInternal,
				"keycloak: failed to encode request body")
			spanError(span, rfErr)
			return nil, rfErr
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			spanError(span, err)
			return nil, err
		}

		resp, err := c.send(ctx, method, rawURL, payload, token)
		if err != nil {
			// Connection failure or timeout: back off, then retry.
			lastErr = err
			if attempt == c.config.MaxRetries-1 {
				break
			}
			if err := c.backoff(ctx, attempt); err != nil {
				spanError(span, err)
				return nil, err
			}
			continue
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if attempt == c.config.MaxRetries-1 {
				break
			}
			if err := c.backoff(ctx, attempt); err != nil {
				spanError(span, err)
				return nil, err
			}
			continue
		}

		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if len(respBody) == 0 {
				return nil, nil
			}
			return json.RawMessage(respBody), nil

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			// The admin token went stale; drop it and retry with a
			// fresh grant, without backoff.
			c.tokens.Invalidate()
			if attempt == c.config.MaxRetries-1 {
				rfErr := rferr.Newf(rferr.CodeAuthTokenRefreshFailed,
					"keycloak: admin API kept rejecting credentials after %d attempts (status %d)",
					c.config.MaxRetries, resp.StatusCode)
				spanError(span, rfErr)
				return nil, rfErr
			}

		case resp.StatusCode == http.StatusNotFound:
			rfErr := rferr.Newf(rferr.CodeNotFound,
				"keycloak: %s %s returned 404", method, rawURL)
			spanError(span, rfErr)
			return nil, rfErr

		case resp.StatusCode == http.StatusConflict:
			rfErr := rferr.Newf(rferr.CodeConflict,
				"keycloak: %s %s returned 409", method, rawURL)
			spanError(span, rfErr)
			return nil, rfErr

		case resp.StatusCode >= 500:
			rfErr := rferr.Newf(rferr.CodeUpstreamServerError,
				"keycloak: identity provider returned status %d", resp.StatusCode).
				WithDetail("status", resp.StatusCode)
			spanError(span, rfErr)
			return nil, rfErr

		default:
			rfErr := rferr.Newf(rferr.CodeUpstreamUnexpectedStatus,
				"keycloak: unexpected status %d from %s %s", resp.StatusCode, method, rawURL).
				WithDetail("status", resp.StatusCode)
			spanError(span, rfErr)
			return nil, rfErr
		}
	}

	rfErr := rferr.Wrapf(lastErr, rferr.CodeUnavailableIdentityProvider,
		"keycloak: identity provider unreachable after %d attempts", c.config.MaxRetries)
	spanError(span, rfErr)
	return nil, rfErr
}

// doInto runs do and decodes the JSON response into out. A nil response
// body with a non-nil out is an upstream protocol error.
func (c *Client) doInto(ctx context.Context, method, rawURL string, body, out any) error {
	raw, err := c.do(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if raw == nil {
		return rferr.Newf(rferr.CodeUpstreamUnexpectedStatus,
			"keycloak: empty response body from %s %s", method, rawURL)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return rferr.Wrapf(err, rferr.CodeUpstreamUnexpectedStatus,
			"keycloak: failed to decode response from %s %s", method, rawURL)
	}
	return nil
}

// send performs a single HTTP attempt with the given bearer token.
func (c *Client) send(ctx context.Context, method, rawURL string, payload []byte, token string) (*http.Response, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}

// backoff sleeps RetryBaseDelay * 2^attempt, returning early with a
// timeout error if ctx is done first.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := c.config.RetryBaseDelay << attempt

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return rferr.Wrap(ctx.Err(), rferr.CodeTimeout,
			"keycloak: request canceled during retry backoff")
	}
}

func spanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
