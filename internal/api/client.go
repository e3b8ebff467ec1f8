// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/pdfchat-tui/internal/tokenstore"
)

// Configuration constants for the PDF Chat API.
const (
	// DefaultBaseURL is the API root of a locally running backend.
	DefaultBaseURL = "http://localhost:8000/api/v1"

	// DefaultTimeout applies to every request.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum accepted response body size.
	MaxResponseSize = 16 * 1024 * 1024
)

// Client talks to the PDF Chat REST API.
//
// When a token store is attached, every request carries
// "Authorization: Bearer <access_token>" if an access token is stored.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     tokenstore.Store
	limiter    *rate.Limiter
	logger     *slog.Logger
	userAgent  string
}

// NewClient creates a client for the API rooted at baseURL
// (for example "http://localhost:8000/api/v1").
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
		userAgent:  "pdfchat",
	}
}

// WithTimeout sets the overall per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithTokenStore attaches the store the bearer token is read from.
func (c *Client) WithTokenStore(store tokenstore.Store) *Client {
	c.tokens = store
	return c
}

// WithRateLimit bounds the outgoing request rate. Requests over the limit
// wait for a token rather than fail. A non-positive rps disables limiting.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the request logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithUserAgent sets the User-Agent header value.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// Request/Response Logging (without sensitive data)
// =============================================================================

// logResponse records method, path, status and duration. Headers and bodies
// carry credentials and document content and are never logged.
func (c *Client) logResponse(req *http.Request, status int, duration time.Duration, err error) {
	attrs := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"duration", duration.Round(time.Millisecond),
	}
	if err != nil {
		c.logger.Debug("api request failed", append(attrs, "error", err.Error())...)
		return
	}
	c.logger.Debug("api request", append(attrs, "status", status)...)
}

// =============================================================================
// Request plumbing
// =============================================================================

// request describes one call.
type request struct {
	method string
	path   string

	// body is JSON-encoded unless raw is set.
	body any

	// raw is sent verbatim with contentType.
	raw         io.Reader
	contentType string

	// token overrides the stored access token.
	token string

	// absolute marks path as a full URL.
	absolute bool
}

// bearer returns the token to send, preferring an explicit one.
func (c *Client) bearer(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c.tokens == nil {
		return ""
	}
	token, err := tokenstore.Lookup(c.tokens, tokenstore.AccessTokenKey)
	if err != nil {
		c.logger.Warn("token store read failed", "error", err)
		return ""
	}
	return token
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	var body io.Reader
	contentType := r.contentType
	switch {
	case r.raw != nil:
		body = r.raw
	case r.body != nil:
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	target := r.path
	if !r.absolute {
		target = c.baseURL + r.path
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token := c.bearer(r.token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// send performs the request and returns the response with an open body.
// Non-2xx responses are converted to *APIError and their bodies closed.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	op := r.method + " " + r.path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Op: op, Err: err}
		}
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		c.logResponse(req, 0, time.Since(start), err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	c.logResponse(req, resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, readErr := readResponse(resp)
		if readErr != nil {
			body = nil
		}
		return nil, parseErrorResponse(resp.StatusCode, body)
	}
	return resp, nil
}

// do performs the request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return &NetworkError{Op: r.method + " " + r.path, Err: err}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &NetworkError{Op: r.method + " " + r.path, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// doEnvelope decodes a {success, message, data} response and unwraps data
// into out. A 2xx envelope with success=false is reported as an *APIError.
func (c *Client) doEnvelope(ctx context.Context, r request, out any) (string, error) {
	var env envelope
	if err := c.do(ctx, r, &env); err != nil {
		return "", err
	}
	if !env.Success {
		return "", &APIError{Status: http.StatusOK, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", &NetworkError{Op: r.method + " " + r.path, Err: fmt.Errorf("failed to parse response data: %w", err)}
		}
	}
	return env.Message, nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// rootURL returns the server root (scheme and host) of the API base URL.
func (c *Client) rootURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("invalid base URL: missing scheme or host")
	}
	return u.Scheme + "://" + u.Host, nil
}
