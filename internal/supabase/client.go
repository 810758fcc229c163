// Package supabase is a minimal client for the Supabase REST (PostgREST) and
// GoTrue admin endpoints used by the challenge store and identity resolver.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls a Supabase project with a fixed API key
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the project at baseURL authenticating with apiKey
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one REST call
type Request struct {
	Method string
	Path   string // e.g. /rest/v1/auth_challenges
	Query  url.Values
	Prefer string // PostgREST Prefer header
	Body   any
}

// APIError is a non-2xx response
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: status %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Message)
}

// errorBody covers both PostgREST and GoTrue error payloads
type errorBody struct {
	Code      any    `json:"code"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Msg       string `json:"msg"`
}

// Do executes req and decodes a JSON response into out when out is non-nil
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("apikey", c.apiKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Prefer != "" {
		httpReq.Header.Set("Prefer", req.Prefer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func newAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(raw))}

	var eb errorBody
	if json.Unmarshal(raw, &eb) != nil {
		return apiErr
	}

	switch {
	case eb.ErrorCode != "":
		apiErr.Code = eb.ErrorCode
	case eb.Code != nil:
		apiErr.Code = fmt.Sprint(eb.Code)
	}
	if eb.Message != "" {
		apiErr.Message = eb.Message
	} else if eb.Msg != "" {
		apiErr.Message = eb.Msg
	}

	return apiErr
}
