// ABOUTME: HTTP client for the fleet dashboard BFF auth endpoints
// ABOUTME: Shares a cookie jar with the session store and echoes the CSRF cookie

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
	"strings"
	"time"

	"github.com/markalston/fleet-dashboard/internal/sessionmeta"
)

const (
	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second

	csrfCookieName = "FLEET_CSRF"
	csrfHeaderName = "X-CSRF-Token"

	loginPath    = "/api/v1/auth/login"
	refreshPath  = "/api/v1/auth/refresh"
	activityPath = "/api/v1/auth/activity"
	logoutPath   = "/api/v1/auth/logout"
	mePath       = "/api/v1/auth/me"
)

// Client is the API client for the fleet dashboard backend
type Client struct {
	baseURL    string
	base       *url.URL
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for baseURL. The jar receives the BFF's session
// cookies and must be the same jar the session store reads.
func New(baseURL string, jar http.CookieJar, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	base, _ := url.Parse(baseURL)

	c := &Client{
		baseURL: baseURL,
		base:    base,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the parsed backend URL, or nil when it did not parse.
func (c *Client) BaseURL() *url.URL {
	return c.base
}

// LoginRequest carries credentials to the backend
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the result of a login attempt. Expiry fields arrive in
// whatever form the backend chose and are normalized by the caller.
type LoginResponse struct {
	Success            bool   `json:"success"`
	Username           string `json:"username,omitempty"`
	UserID             string `json:"user_id,omitempty"`
	Error              string `json:"error,omitempty"`
	ExpiresAt          any    `json:"expires_at,omitempty"`
	IdleTimeoutMinutes any    `json:"idle_timeout_minutes,omitempty"`
}

// Raw returns the session timing fields for normalization.
func (r *LoginResponse) Raw() sessionmeta.Raw {
	return sessionmeta.Raw{
		ExpiresAt:          r.ExpiresAt,
		IdleTimeoutMinutes: r.IdleTimeoutMinutes,
	}
}

// UserInfoResponse is the current user's authentication state
type UserInfoResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	UserID        string `json:"user_id,omitempty"`
}

// ErrorResponse represents an API error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    int    `json:"code"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	if e.Details != "" {
		return fmt.Sprintf("backend error: %s (%s)", e.Message, e.Details)
	}
	return fmt.Sprintf("backend error: %s", e.Message)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Login calls POST /api/v1/auth/login. The backend sets its session
// cookies on the shared jar.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, loginPath, LoginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "login rejected"
		}
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: msg}
	}
	return &resp, nil
}

// RenewSession calls POST /api/v1/auth/refresh and returns the renewed
// expiry fields.
func (c *Client) RenewSession(ctx context.Context) (sessionmeta.Raw, error) {
	var raw sessionmeta.Raw
	if err := c.do(ctx, http.MethodPost, refreshPath, nil, &raw); err != nil {
		return sessionmeta.Raw{}, err
	}
	return raw, nil
}

// NotifyActivity calls POST /api/v1/auth/activity
func (c *Client) NotifyActivity(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, activityPath, nil, nil)
}

// EndSession calls POST /api/v1/auth/logout
func (c *Client) EndSession(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, logoutPath, nil, nil)
}

// Me calls GET /api/v1/auth/me
func (c *Client) Me(ctx context.Context) (*UserInfoResponse, error) {
	var info UserInfoResponse
	if err := c.do(ctx, http.MethodGet, mePath, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal input: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if method != http.MethodGet && path != loginPath {
		c.setCSRFHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid response from backend: %w", err)
	}
	return nil
}

// setCSRFHeader echoes the CSRF cookie for the double-submit check.
func (c *Client) setCSRFHeader(req *http.Request) {
	if c.httpClient.Jar == nil {
		return
	}
	for _, ck := range c.httpClient.Jar.Cookies(req.URL) {
		if ck.Name == csrfCookieName && ck.Value != "" {
			req.Header.Set(csrfHeaderName, ck.Value)
			return
		}
	}
}

// handleRequestError converts context errors to user-friendly messages
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("request canceled: %w", ctx.Err())
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", ctx.Err())
	}
	return fmt.Errorf("cannot connect to backend at %s: %w", c.baseURL, err)
}

// handleErrorResponse parses API error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
		apiErr.Message = errResp.Error
		apiErr.Details = errResp.Details
	}
	return apiErr
}
