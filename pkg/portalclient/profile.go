package portalclient

import (
	"context"
	"net/http"
)

// Profile fetches the account of the current session.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.authed(ctx, http.MethodGet, "/api/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile replaces the account's names and email. Rejected fields come
// back as APIError details.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (*Profile, error) {
	var p Profile
	if err := c.authed(ctx, http.MethodPut, "/api/profile", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
