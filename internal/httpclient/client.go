// Package httpclient is the JSON-over-HTTP client used for the identity
// provider and key API calls.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
)

// UserAgent is sent with every request unless overridden.
const UserAgent = "switchbot-key"

// Config holds HTTP client configuration
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	DefaultHeaders map[string]string
}

// DefaultConfig returns a default HTTP client configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Second,
		DefaultHeaders: map[string]string{
			"User-Agent": UserAgent,
		},
	}
}

// Client wraps http.Client with retries and typed HTTP errors.
type Client struct {
	httpClient *http.Client
	config     *Config
}

// New creates a new HTTP client with the given configuration
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

// HTTPClient exposes the underlying client for libraries that take one.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Request represents an HTTP request
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	// Body is sent as is for string, []byte and io.Reader, JSON encoded otherwise.
	Body any
}

// Response carries the fully read body.
type Response struct {
	*http.Response
	BodyBytes []byte
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	if len(r.BodyBytes) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.BodyBytes, v)
}

// String returns the response body as a string
func (r *Response) String() string {
	return string(r.BodyBytes)
}

// Do performs an HTTP request, retrying transport failures and 5xx replies.
// A 4xx reply is returned together with an AppError built from its status.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		resp, err := c.doSingle(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Don't retry on context cancellation or client errors (4xx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return resp, err
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) doSingle(ctx context.Context, req *Request) (*Response, error) {
	bodyReader, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewNetworkError("HTTP request failed").WithDetails(req.URL).WithCause(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	resp := &Response{
		Response:  httpResp,
		BodyBytes: bodyBytes,
	}

	if httpResp.StatusCode >= 400 {
		return resp, apperrors.FromHTTPStatus(httpResp.StatusCode,
			fmt.Sprintf("HTTP %d from %s", httpResp.StatusCode, req.URL)).WithDetails(string(bodyBytes))
	}
	return resp, nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return bytes.NewBufferString(b), nil
	case []byte:
		return bytes.NewBuffer(b), nil
	case io.Reader:
		return b, nil
	default:
		jsonBytes, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return bytes.NewBuffer(jsonBytes), nil
	}
}

// PostJSON posts body as JSON. contentType defaults to application/json;
// AWS endpoints want application/x-amz-json-1.1.
func (c *Client) PostJSON(ctx context.Context, url, contentType string, body any, headers map[string]string) (*Response, error) {
	if contentType == "" {
		contentType = "application/json"
	}

	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	merged["Content-Type"] = contentType

	return c.Do(ctx, &Request{
		Method:  http.MethodPost,
		URL:     url,
		Headers: merged,
		Body:    body,
	})
}
