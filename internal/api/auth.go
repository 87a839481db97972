package api

import (
	"context"
	"net/http"

	"github.com/labcentral/labcentral/internal/model"
)

// LoginResult is the backend's answer to a successful login.
type LoginResult struct {
	Message             string `json:"message"`
	Token               string `json:"token"`
	IsAdmin             bool   `json:"is_admin"`
	ForcePasswordChange bool   `json:"force_password_change"`
}

// ResetRequest is returned by a password reset request. ResetToken is only
// present while the backend has no mail delivery.
type ResetRequest struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token"`
}

// Login exchanges credentials for a session token. When the body carries no
// token the session cookie is used instead.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*LoginResult, error) {
	var out LoginResult
	resp, err := c.exchangeJSON(ctx, http.MethodPost, "/api/login", creds, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		for _, ck := range resp.Cookies() {
			if ck.Name == SessionCookieName {
				out.Token = ck.Value
			}
		}
	}
	return &out, nil
}

// Logout ends the backend session. The backend also removes the user's containers.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, creds model.Credentials, confirm string) (string, error) {
	in := struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}{creds.Email, creds.Password, confirm}
	var out messageResponse
	if err := c.do(ctx, http.MethodPost, "/api/signup", in, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// CurrentUser returns the identity of the session.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/api/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RequestPasswordReset asks the backend to issue a reset token for email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (*ResetRequest, error) {
	in := map[string]string{"email": email}
	var out ResetRequest
	if err := c.do(ctx, http.MethodPost, "/api/request_password_reset", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	in := map[string]string{"token": token, "new_password": newPassword}
	var out messageResponse
	if err := c.do(ctx, http.MethodPost, "/api/reset_password", in, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ForceChangePassword replaces a temporary password. The client must carry
// the token returned by the login that required the change.
func (c *Client) ForceChangePassword(ctx context.Context, newPassword string) (string, error) {
	in := map[string]string{"new_password": newPassword}
	var out messageResponse
	if err := c.do(ctx, http.MethodPost, "/api/force_change_password", in, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// BulkCreateUsers provisions accounts and returns their temporary passwords.
func (c *Client) BulkCreateUsers(ctx context.Context, users []model.BulkUser) ([]model.CreatedUser, error) {
	in := struct {
		Users []model.BulkUser `json:"users"`
	}{users}
	var out struct {
		Created []model.CreatedUser `json:"created"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/bulk_create_users", in, &out); err != nil {
		return nil, err
	}
	return out.Created, nil
}
