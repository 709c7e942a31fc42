// Package apiclient calls the plant back-end API on behalf of the station.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"xmixing/session"
)

// ErrInvalidCredentials is returned by Login when the back-end rejects the
// username or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// BaseURLFunc yields the back-end base address. It is called on every request.
type BaseURLFunc func() string

// AuthHeaderFunc yields headers to attach to each request, usually the
// session's bearer header.
type AuthHeaderFunc func() map[string]string

type Client struct {
	baseURL    BaseURLFunc
	authHeader AuthHeaderFunc
	httpClient *http.Client
}

func NewClient(baseURL BaseURLFunc, authHeader AuthHeaderFunc, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		authHeader: authHeader,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithBaseURL returns a copy of c that resolves its base address with fn.
func (c *Client) WithBaseURL(fn BaseURLFunc) *Client {
	cp := *c
	cp.baseURL = fn
	return &cp
}

// APIError is a non-2xx answer from the back-end.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api HTTP %d", e.Status)
	}
	return fmt.Sprintf("api HTTP %d: %s", e.Status, e.Detail)
}

type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	User        session.Identity `json:"user"`
}

// Login exchanges credentials for an access token and the operator profile.
func (c *Client) Login(ctx context.Context, usernameOrEmail, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.post(ctx, "/auth/login", LoginRequest{UsernameOrEmail: usernameOrEmail, Password: password}, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("api login: empty access token")
	}
	return &resp, nil
}

type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name,omitempty"`
	Department string `json:"department,omitempty"`
}

// Register creates an operator account. The new account is not signed in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*session.Identity, error) {
	var user session.Identity
	if err := c.post(ctx, "/auth/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Get fetches path and decodes a JSON answer into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api marshal: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, bodyReader)
	if err != nil {
		return fmt.Errorf("api %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.authHeader != nil {
		for k, v := range c.authHeader() {
			req.Header.Set(k, v)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	return decode(resp, result)
}

func decode(resp *http.Response, result any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Detail: errorDetail(data)}
	}
	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("api decode: %w", err)
		}
	}
	return nil
}

// errorDetail extracts the back-end's {"detail": "..."} message, falling
// back to the raw body.
func errorDetail(data []byte) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if s, ok := body.Detail.(string); ok {
			return s
		}
	}
	return string(bytes.TrimSpace(data))
}
