// Package api is a client for the LabCentral backend HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionCookieName is the cookie the backend reads the session token from.
	SessionCookieName = "session_token"

	maxResponseBytes = 10 << 20
)

var idSegment = regexp.MustCompile(`/\d+`)

// Observer receives one call per completed backend request.
type Observer interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Client talks to the backend on behalf of one session.
type Client struct {
	baseURL  string
	http     *http.Client
	token    string
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver registers a request observer, used for metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the session token the client authenticates with.
func (c *Client) Token() string {
	return c.token
}

// WithToken returns a copy of the client that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	_, err := c.exchangeJSON(ctx, method, path, in, out)
	return err
}

func (c *Client) exchangeJSON(ctx context.Context, method, path string, in, out any) (*http.Response, error) {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.exchange(ctx, method, path, contentType, body, out)
}

// exchange performs one request. The returned response has its body consumed
// and is only useful for headers and cookies.
func (c *Client) exchange(ctx context.Context, method, path, contentType string, body io.Reader, out any) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: c.token})
	}

	route := idSegment.ReplaceAllString(path, "/{id}")
	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.observe(method, route, 0, elapsed)
		slog.Debug("api request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.observe(method, route, resp.StatusCode, elapsed)
	slog.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", elapsed,
		"request_id", requestID,
	)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if apiErr := errorFromResponse(method, path, resp.StatusCode, data); apiErr != nil {
		return resp, apiErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp, fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) observe(method, route string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, route, status, elapsed)
	}
}

type messageResponse struct {
	Message string `json:"message"`
}
