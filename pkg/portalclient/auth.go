package portalclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Register creates an account and returns the one-time PIN.
func (c *Client) Register(ctx context.Context, phoneNumber string) (*RegisterResult, error) {
	var res RegisterResult
	err := c.call(ctx, http.MethodPost, "/api/auth/register", map[string]string{"phone_number": phoneNumber}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Login authenticates and stores the issued session. When the server
// regenerated the PIN instead, no session is stored and the result carries NewPIN.
func (c *Client) Login(ctx context.Context, phoneNumber, pin string) (*LoginResult, error) {
	var res LoginResult
	err := c.call(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"phone_number": phoneNumber,
		"pin":          pin,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.PINRegenerated || res.SessionToken == "" {
		return &res, nil
	}

	stored := StoredSession{Token: res.SessionToken, UserID: res.UserID, Role: res.Role}
	if res.ExpiresAt != nil {
		stored.ExpiresAt = *res.ExpiresAt
	}
	if err := c.session.set(ctx, stored); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &res, nil
}

// ValidateSession confirms the stored session with the server. A locally
// expired session is purged without a round trip; a rejected one is purged too.
func (c *Client) ValidateSession(ctx context.Context) (*SessionInfo, error) {
	if c.session.Token() == "" {
		return nil, ErrNoSession
	}
	if c.session.expired(time.Now()) {
		if err := c.session.Teardown(ctx); err != nil {
			return nil, err
		}
		return nil, ErrSessionInvalid
	}

	var info SessionInfo
	if err := c.authed(ctx, http.MethodGet, "/api/auth/session", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Logout revokes the session on the server and always clears the store.
// Logging out without a session, or with one the server already dropped, is not an error.
func (c *Client) Logout(ctx context.Context) error {
	var callErr error
	if c.session.Token() != "" {
		callErr = c.call(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
		if StatusCode(callErr) == http.StatusUnauthorized {
			callErr = nil
		}
	}
	return errors.Join(callErr, c.session.Teardown(ctx))
}
