package cyberauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ServiceKeyHeader carries the service key on cleanup calls
const ServiceKeyHeader = "X-Service-Key"

const (
	challengePath = "/auth/web3/challenge"
	verifyPath    = "/auth/web3/verify"
	cleanupPath   = "/auth/web3/cleanup"
	mePath        = "/api/me"
)

// HTTPClient talks to a cyberauth server over HTTP. Connection errors and 5xx
// answers are retried with backoff, except that Verify is retried only when no
// answer arrived: a server that answered may already have consumed the challenge.
type HTTPClient struct {
	baseURL    string
	serviceKey string
	http       *retryablehttp.Client
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithServiceKey sets the key sent with Cleanup
func WithServiceKey(key string) Option {
	return func(c *HTTPClient) {
		c.serviceKey = key
	}
}

// WithRetries sets how many times a failed request is retried
func WithRetries(n int) Option {
	return func(c *HTTPClient) {
		c.http.RetryMax = n
	}
}

// WithTimeout bounds each attempt
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.http.HTTPClient.Timeout = d
	}
}

// WithLogger routes retry diagnostics to logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *HTTPClient) {
		c.http.Logger = logger
	}
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, opts ...Option) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil
	// hand the last response back so its status can be mapped
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = checkRetry

	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

// consumingKey marks requests that must not be resent once the server answered
type consumingKey struct{}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil && ctx.Value(consumingKey{}) != nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Challenge implements Client
func (c *HTTPClient) Challenge(ctx context.Context, walletAddress string) (*Challenge, error) {
	var out Challenge
	body := map[string]string{"wallet_address": walletAddress}
	if err := c.do(ctx, http.MethodPost, challengePath, body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type verifyResponse struct {
	Session
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Verify implements Client. A rejected proof returns an *APIError wrapping
// ErrVerificationFailed with the server's message.
func (c *HTTPClient) Verify(ctx context.Context, req VerifyRequest) (*Session, error) {
	var out verifyResponse
	ctx = context.WithValue(ctx, consumingKey{}, true)
	if err := c.do(ctx, http.MethodPost, verifyPath, req, nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: out.Error}
	}
	return &out.Session, nil
}

// Cleanup implements Client
func (c *HTTPClient) Cleanup(ctx context.Context) (int64, error) {
	var out struct {
		DeletedCount int64 `json:"deleted_count"`
	}
	var header http.Header
	if c.serviceKey != "" {
		header = http.Header{ServiceKeyHeader: []string{c.serviceKey}}
	}
	if err := c.do(ctx, http.MethodPost, cleanupPath, nil, header, &out); err != nil {
		return 0, err
	}
	return out.DeletedCount, nil
}

// Me implements Client
func (c *HTTPClient) Me(ctx context.Context, accessToken string) (*Profile, error) {
	var out Profile
	header := http.Header{"Authorization": []string{"Bearer " + accessToken}}
	if err := c.do(ctx, http.MethodGet, mePath, nil, header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in any, header http.Header, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// verify answers 200 for rejected proofs and the caller inspects the body
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
