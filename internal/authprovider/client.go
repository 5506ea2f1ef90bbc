// Package authprovider talks to the hosted auth service (a GoTrue-compatible
// REST API). The client keeps no session state of its own: every call is a
// single round trip, nothing is persisted and nothing is refreshed behind the
// caller's back. Persistence belongs to the cookie store.
package authprovider

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

	"sotto-note/internal/model"
	"sotto-note/internal/token"
)

// ErrRefreshRejected is returned when the provider refuses a refresh token
// (expired, revoked or already rotated). It is terminal for the session.
var ErrRefreshRejected = model.ErrRefreshRejected

type Client struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	httpClient     *http.Client
	now            func() time.Time
}

func New(baseURL string, anonKey string, serviceRoleKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		anonKey:        anonKey,
		serviceRoleKey: serviceRoleKey,
		httpClient:     &http.Client{Timeout: timeout},
		now:            time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Refresh exchanges a refresh token for a new access/refresh pair. The old
// refresh token is spent by the provider on success.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.AuthSession, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrRefreshRejected
	}

	var out tokenResponse
	status, err := c.post(ctx, "/auth/v1/token?grant_type=refresh_token", c.anonKey, "",
		map[string]string{"refresh_token": refreshToken}, &out)
	if err != nil {
		if status >= 400 && status < 500 {
			return nil, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	return c.toSession(out)
}

// SignInWithPassword returns model.ErrInvalidCredentials for any rejection of
// the email/password pair.
func (c *Client) SignInWithPassword(ctx context.Context, email string, password string) (*model.AuthSession, error) {
	var out tokenResponse
	status, err := c.post(ctx, "/auth/v1/token?grant_type=password", c.anonKey, "",
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity:
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}

	return c.toSession(out)
}

// SignOut revokes the session server-side. Callers treat failures as
// best-effort; local logout never depends on it.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return errors.New("sign out: access token is required")
	}

	if _, err := c.post(ctx, "/auth/v1/logout", c.anonKey, accessToken, nil, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// AdminGetUser looks up an identity with the service-role key.
func (c *Client) AdminGetUser(ctx context.Context, userID string) (*model.AuthUser, error) {
	if c.serviceRoleKey == "" {
		return nil, errors.New("admin get user: service role key is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/auth/v1/admin/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, c.serviceRoleKey, c.serviceRoleKey)

	var out userResponse
	status, err := c.do(req, &out)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %v", model.ErrProfileNotFound, err)
		}
		return nil, fmt.Errorf("admin get user: %w", err)
	}

	return &model.AuthUser{ID: out.ID, Email: out.Email, Metadata: out.UserMetadata}, nil
}

func (c *Client) toSession(out tokenResponse) (*model.AuthSession, error) {
	if out.AccessToken == "" || out.RefreshToken == "" || out.User.ID == "" {
		return nil, errors.New("provider returned an incomplete session")
	}

	expiresAt := out.ExpiresAt
	if expiresAt == 0 && out.ExpiresIn > 0 {
		expiresAt = c.now().Unix() + out.ExpiresIn
	}
	if expiresAt == 0 {
		if exp, err := token.ExpiresAt(out.AccessToken); err == nil {
			expiresAt = exp.Unix()
		}
	}

	return &model.AuthSession{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    expiresAt,
		User: model.AuthUser{
			ID:       out.User.ID,
			Email:    out.User.Email,
			Metadata: out.User.UserMetadata,
		},
	}, nil
}

func (c *Client) post(ctx context.Context, path string, apiKey string, bearer string, body any, out any) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, apiKey, bearer)

	return c.do(req, out)
}

func (c *Client) setHeaders(req *http.Request, apiKey string, bearer string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", apiKey)
	if bearer == "" {
		bearer = apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
}

func (c *Client) do(req *http.Request, out any) (int, error) {
	started := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	slog.Debug("auth provider call",
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.text() != "" {
			return resp.StatusCode, fmt.Errorf("provider error %d: %s", resp.StatusCode, errResp.text())
		}
		return resp.StatusCode, fmt.Errorf("provider error %d", resp.StatusCode)
	}

	if out == nil || len(respBody) == 0 {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
	}

	return resp.StatusCode, nil
}
