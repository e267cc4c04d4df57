package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-client/authmodel"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
)

const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	RefreshPath  = "/auth/refresh"
	LogoutPath   = "/auth/logout"
)

// Login authenticates and stores the returned session. The auth endpoints
// never go through the refresh path: a 401 here means bad credentials.
func (c *Client) Login(ctx context.Context, req authmodel.LoginRequest) (*authmodel.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", autherrors.ErrInvalidRequest, err)
	}
	resp, err := c.authenticate(ctx, LoginPath, req)
	if err != nil {
		return nil, fmt.Errorf("[apiclient.Login] %w", err)
	}
	return resp, nil
}

// Register creates an account, which also signs the new user in.
func (c *Client) Register(ctx context.Context, req authmodel.RegisterRequest) (*authmodel.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", autherrors.ErrInvalidRequest, err)
	}
	resp, err := c.authenticate(ctx, RegisterPath, req)
	if err != nil {
		return nil, fmt.Errorf("[apiclient.Register] %w", err)
	}
	return resp, nil
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*authmodel.AuthResponse, error) {
	var resp authmodel.AuthResponse
	if err := c.post(ctx, path, body, "", &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: response carried no access token", autherrors.ErrInvalidToken)
	}
	// The three values are stored together or not at all; the previous session stays untouched.
	if resp.RefreshToken == "" || resp.User == nil {
		return nil, fmt.Errorf("%w: response lacks a refresh token or user", autherrors.ErrIncompleteSession)
	}

	// A login replaces whatever was stored, including a stale user.
	next := sessions.Session{AccessToken: resp.Token, RefreshToken: resp.RefreshToken, User: resp.User}
	if err := c.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new pair without touching the store.
// It satisfies refresh.Refresher; the coordinator owns storing the result.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*authmodel.AuthResponse, error) {
	var resp authmodel.AuthResponse
	if err := c.post(ctx, RefreshPath, authmodel.RefreshRequest{RefreshToken: refreshToken}, "", &resp); err != nil {
		return nil, fmt.Errorf("[apiclient.Refresh] %w", err)
	}
	return &resp, nil
}

// Logout revokes the refresh token at the server and clears the stored
// session. The server call is best effort: the local session is cleared even
// when it fails, and that failure is returned for the caller to log.
func (c *Client) Logout(ctx context.Context) error {
	sess, err := c.store.Load(ctx)
	if err != nil {
		c.log.Err(err).Msg("failed to read session for logout")
	}

	var revokeErr error
	if sess.RefreshToken != "" {
		revokeErr = c.post(ctx, LogoutPath, authmodel.RefreshRequest{RefreshToken: sess.RefreshToken}, sess.AccessToken, nil)
	}

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("[apiclient.Logout] clear session: %w", autherrors.Join(err, revokeErr))
	}
	if revokeErr != nil {
		return fmt.Errorf("[apiclient.Logout] revoke: %w", revokeErr)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, accessToken string, out any) error {
	payload, err := encode(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data, status, err := c.send(ctx, http.MethodPost, path, nil, payload, accessToken, nil)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return newAPIError(http.MethodPost, path, status, data)
	}
	return decode(data, out)
}
