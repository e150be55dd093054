package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/timereport/timereport-cli/pkg/timereport/credentials"
)

const (
	// RequestIDHeader carries a per-request UUID so a failing call can be
	// found in backend logs.
	RequestIDHeader = "X-Request-Id"

	defaultTimeout = 30 * time.Second
)

type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	log       *zap.SugaredLogger
}

type Option func(*Client) error

// New builds a client for the backend recorded in cred. Every request carries
// the credential's token as a bearer token.
func New(cred credentials.Credential, opts ...Option) (*Client, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	parsed, err := url.Parse(cred.ServerURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", cred.ServerURL)
	}
	c := &Client{
		baseURL:   parsed,
		userAgent: "timereport",
		log:       zap.NewNop().Sugar(),
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Token, TokenType: "Bearer"}),
				Base:   http.DefaultTransport,
			},
		},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		c.http.Timeout = timeout
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log.With("component", "client")
		}
		return nil
	}
}

// ValidateFunctionPath checks that path has the "module:function" shape.
func ValidateFunctionPath(fn string) error {
	module, name, ok := strings.Cut(fn, ":")
	if !ok || module == "" || name == "" || strings.Contains(name, ":") {
		return fmt.Errorf("invalid function path: %q. Expected \"module:functionName\"", fn)
	}
	return nil
}

// Query runs a read-only backend function and decodes its value into out.
// out may be nil when the value is not needed.
func (c *Client) Query(ctx context.Context, fn string, args any, out any) error {
	return c.call(ctx, "api/query", fn, args, out)
}

// Mutation runs a backend function that may change state.
func (c *Client) Mutation(ctx context.Context, fn string, args any, out any) error {
	return c.call(ctx, "api/mutation", fn, args, out)
}

type functionRequest struct {
	Path   string `json:"path"`
	Args   any    `json:"args"`
	Format string `json:"format"`
}

type functionResponse struct {
	Status       string          `json:"status"`
	Value        json.RawMessage `json:"value"`
	ErrorMessage string          `json:"errorMessage"`
}

func (c *Client) call(ctx context.Context, endpoint, fn string, args any, out any) error {
	if err := ValidateFunctionPath(fn); err != nil {
		return err
	}
	if args == nil {
		args = map[string]any{}
	}
	var resp functionResponse
	if err := c.do(ctx, endpoint, functionRequest{Path: fn, Args: args, Format: "json"}, &resp); err != nil {
		return err
	}
	switch resp.Status {
	case "success":
	case "error":
		return &APIError{Path: fn, Message: resp.ErrorMessage}
	default:
		return fmt.Errorf("unexpected response status %q from %s", resp.Status, fn)
	}
	if out == nil || len(resp.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Value, out); err != nil {
		return fmt.Errorf("failed to decode result of %s: %w", fn, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string, body any, out *functionResponse) error {
	fullURL := *c.baseURL
	fullURL.Path = path.Join("/", fullURL.Path, endpoint)

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.log.Debugw("Calling backend", "endpoint", endpoint, "requestID", requestID)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", requestID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	// Function errors come back as a JSON envelope even on non-2xx codes.
	decodeErr := json.Unmarshal(data, out)
	if decodeErr == nil && out.Status == "error" {
		return nil
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, resp.Status, data)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	return nil
}

func decodeError(code int, status string, body []byte) error {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &apiErr)
	}
	msg := strings.TrimSpace(apiErr.Error)
	if msg == "" {
		msg = strings.TrimSpace(apiErr.Message)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = status
	}
	return &HTTPError{StatusCode: code, Message: msg}
}

// HTTPError is a transport-level failure that carried no function result.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// APIError is an error raised by the backend function itself.
type APIError struct {
	Path    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Path, e.Message)
}
