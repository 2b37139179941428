// Package api is the HTTP client for the NAS backend's JSON API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds a single API round trip.
	DefaultTimeout = 30 * time.Second
	// MaxResponseBytes caps response bodies.
	MaxResponseBytes = 8 * 1024 * 1024

	MaxIdleConns          = 20
	MaxIdleConnsPerHost   = 10
	IdleConnTimeout       = 90 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	ExpectContinueTimeout = 1 * time.Second

	// RequestIDHeader carries a per-request UUID for backend log correlation.
	RequestIDHeader = "X-Request-ID"
)

// NewHTTPClient returns an http.Client with the console's transport tuning.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          MaxIdleConns,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Client talks to <server>/api. It attaches the bearer token from its
// token source and calls the unauthorized handler on any 401 before
// returning the error, so callers see session state already cleared.
type Client struct {
	server         string
	http           *http.Client
	token          func() string
	onUnauthorized func()
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenSource sets the function consulted for the bearer token.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) {
		c.token = fn
	}
}

// WithUnauthorizedHandler sets the function invoked on a 401 response.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the backend at server (e.g. "http://nas:3000").
func New(server string, opts ...Option) *Client {
	c := &Client{
		server: strings.TrimRight(server, "/"),
		http:   NewHTTPClient(DefaultTimeout),
		token:  func() string { return "" },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Server returns the backend origin.
func (c *Client) Server() string {
	return c.server
}

// BaseURL returns the API root, <server>/api.
func (c *Client) BaseURL() string {
	return c.server + "/api"
}

// SetUnauthorizedHandler replaces the 401 handler after construction.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// Get performs a GET and decodes the JSON response into out (if non-nil).
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, body, out)
}

// Put performs a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.do(ctx, http.MethodPut, endpoint, body, out)
}

// Patch performs a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body, out any) error {
	return c.do(ctx, http.MethodPatch, endpoint, body, out)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodDelete, endpoint, nil, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	data, resp, err := doAndRead(c.http, req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "endpoint", endpoint, "request_id", requestID, "error", err)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return &Error{Kind: KindTransient, Status: status, Cause: err}
	}
	c.logger.Debug("api request",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return errorFromResponse(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, endpoint, err)
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func errorFromResponse(status int, data []byte) *Error {
	e := &Error{Kind: kindForStatus(status), Status: status}
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		e.Code = body.Code
		switch {
		case strings.TrimSpace(body.Message) != "":
			e.Message = body.Message
		case strings.TrimSpace(body.Error) != "":
			e.Message = body.Error
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP %d", status)
	}
	return e
}

// doAndRead performs req, reads the capped body and always closes it.
func doAndRead(client *http.Client, req *http.Request) ([]byte, *http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > MaxResponseBytes {
		return nil, resp, fmt.Errorf("response body too large (limit %d bytes)", MaxResponseBytes)
	}

	limited := &io.LimitedReader{R: resp.Body, N: MaxResponseBytes + 1}
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > MaxResponseBytes {
		return nil, resp, fmt.Errorf("response body too large (limit %d bytes)", MaxResponseBytes)
	}
	return body, resp, nil
}
