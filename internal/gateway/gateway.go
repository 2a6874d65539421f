package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hmngo/vidcast/internal/config"
)

// header convention for a gateway endpoint
type Auth string

const (
	// OpenAI-style endpoints: Authorization: Bearer <key>
	AuthBearer Auth = "bearer"
	// Gemini-style endpoints: x-goog-api-key: <key>
	AuthGoogle Auth = "google"
)

// non-2xx reply from the gateway
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// a 2xx reply whose shape does not match the expected contract.
// Shape errors are never retried.
var ErrMalformedResponse = errors.New("malformed gateway response")

// MissingField wraps ErrMalformedResponse with the absent field path.
func MissingField(field string) error {
	return fmt.Errorf("%w: missing %s", ErrMalformedResponse, field)
}

// shared HTTP plumbing for the AI gateway
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins a path onto the gateway base.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) setHeaders(req *http.Request, auth Auth) {
	req.Header.Set("Content-Type", "application/json")
	switch auth {
	case AuthGoogle:
		req.Header.Set("x-goog-api-key", c.apiKey)
	default:
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// PostJSON sends body as JSON and decodes a JSON reply into out.
// out may be nil when the reply does not matter.
func (c *Client) PostJSON(
	ctx context.Context,
	path string,
	auth Auth,
	body any,
	out any,
) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.URL(path),
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req, auth)

	return c.do(req, out)
}

// GetJSON fetches a JSON document into out.
func (c *Client) GetJSON(
	ctx context.Context,
	path string,
	auth Auth,
	out any,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req, auth)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncateString(string(data), 500),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	return nil
}

// Download streams a gateway URL to a file on disk.
func (c *Client) Download(
	ctx context.Context,
	path string,
	auth Auth,
	destPath string,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req, auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncateString(string(data), 500),
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("write download: %w", err)
	}
	return out.Close()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
