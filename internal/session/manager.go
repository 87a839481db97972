// Package session is the gate between a user and the backend: it logs in,
// keeps the backend token in the local store, and checks it on every use.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/validate"
)

var (
	ErrNotAuthenticated        = errors.New("not logged in")
	ErrPasswordChangeRequired  = errors.New("password change required")
	ErrNoPendingPasswordChange = errors.New("no password change is pending")
	ErrPasswordMismatch        = errors.New("passwords do not match")
	ErrBlankPassword           = errors.New("password is blank")
	ErrBlankToken              = errors.New("reset token is blank")
)

// Store persists sessions. *store.Store implements it.
type Store interface {
	SaveSession(sess model.Session) error
	GetSession(id string) (*model.Session, error)
	DeleteSession(id string) error
}

// Manager runs the auth flows against one backend.
type Manager struct {
	client *api.Client
	store  Store
	now    func() time.Time
}

// NewManager creates a manager. client must not carry a token.
func NewManager(client *api.Client, store Store) *Manager {
	return &Manager{client: client, store: store, now: time.Now}
}

// Client returns an API client authenticated as sess.
func (m *Manager) Client(sess *model.Session) *api.Client {
	return m.client.WithToken(sess.Token)
}

// Login checks credentials locally, exchanges them for a backend token and
// stores the session under sessionID. When the backend requires a password
// change the stored session only allows ForceChangePassword.
func (m *Manager) Login(ctx context.Context, sessionID string, creds model.Credentials) (*model.Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validate.Struct(creds); err != nil {
		return nil, err
	}

	res, err := m.client.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	claims := readClaims(res.Token)
	sess := model.Session{
		ID:    sessionID,
		Token: res.Token,
		User: model.User{
			ID:      claims.UserID,
			Email:   creds.Email,
			IsAdmin: res.IsAdmin,
		},
		ForcePasswordChange: res.ForcePasswordChange,
		CreatedAt:           m.now(),
		ExpiresAt:           claims.ExpiresAt,
	}

	if !sess.ForcePasswordChange {
		if u, err := m.client.WithToken(res.Token).CurrentUser(ctx); err == nil {
			sess.User.FirstName, sess.User.LastName = u.FirstName, u.LastName
			if u.ID != 0 {
				sess.User.ID = u.ID
			}
		} else {
			slog.Debug("fetch user after login", "error", err)
		}
	}

	if err := m.store.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	slog.Info("logged in", "email", sess.User.Email, "admin", sess.User.IsAdmin, "force_password_change", sess.ForcePasswordChange)
	return &sess, nil
}

// Logout ends the backend session and always removes the local one.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	sess, err := m.store.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess != nil {
		if err := m.Client(sess).Logout(ctx); err != nil {
			slog.Warn("backend logout failed", "email", sess.User.Email, "error", err)
		}
	}
	if err := m.store.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Pending returns the stored session without checking it with the backend.
func (m *Manager) Pending(sessionID string) (*model.Session, error) {
	sess, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrNotAuthenticated
	}
	return sess, nil
}

// Current returns the stored session after checking it with the backend.
// A rejected token drops the session and yields ErrNotAuthenticated.
func (m *Manager) Current(ctx context.Context, sessionID string) (*model.Session, error) {
	sess, err := m.Pending(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.ForcePasswordChange {
		return sess, ErrPasswordChangeRequired
	}

	u, err := m.Client(sess).CurrentUser(ctx)
	if errors.Is(err, api.ErrUnauthorized) {
		slog.Info("session rejected by backend", "email", sess.User.Email)
		if err := m.store.DeleteSession(sessionID); err != nil {
			slog.Warn("delete rejected session", "error", err)
		}
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}

	fresh := *u
	if fresh.Email == "" {
		fresh.Email = sess.User.Email
	}
	if fresh != sess.User {
		sess.User = fresh
		if err := m.store.SaveSession(*sess); err != nil {
			slog.Warn("update session identity", "error", err)
		}
	}
	return sess, nil
}

// Signup registers a new account. It does not log in.
func (m *Manager) Signup(ctx context.Context, creds model.Credentials, confirm string) (string, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validate.Struct(creds); err != nil {
		return "", err
	}
	if creds.Password != confirm {
		return "", ErrPasswordMismatch
	}
	msg, err := m.client.Signup(ctx, creds, confirm)
	if err != nil {
		return "", fmt.Errorf("signup: %w", err)
	}
	slog.Info("account created", "email", creds.Email)
	return msg, nil
}

// RequestPasswordReset asks for a reset token for email.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) (*api.ResetRequest, error) {
	email = strings.TrimSpace(email)
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	res, err := m.client.RequestPasswordReset(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("request password reset: %w", err)
	}
	return res, nil
}

// ResetPassword sets a new password with a reset token.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrBlankToken
	}
	if strings.TrimSpace(newPassword) == "" {
		return "", ErrBlankPassword
	}
	msg, err := m.client.ResetPassword(ctx, strings.TrimSpace(token), newPassword)
	if err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	return msg, nil
}

// ForceChangePassword replaces the temporary password of a pending session.
// The session is dropped afterwards and the user logs in again.
func (m *Manager) ForceChangePassword(ctx context.Context, sessionID, newPassword string) (string, error) {
	if strings.TrimSpace(newPassword) == "" {
		return "", ErrBlankPassword
	}
	sess, err := m.Pending(sessionID)
	if err != nil {
		return "", err
	}
	if !sess.ForcePasswordChange {
		return "", ErrNoPendingPasswordChange
	}
	msg, err := m.Client(sess).ForceChangePassword(ctx, newPassword)
	if err != nil {
		return "", fmt.Errorf("change password: %w", err)
	}
	if err := m.store.DeleteSession(sessionID); err != nil {
		return "", fmt.Errorf("delete session: %w", err)
	}
	slog.Info("temporary password replaced", "email", sess.User.Email)
	return msg, nil
}

type tokenClaims struct {
	UserID    int64
	ExpiresAt time.Time
}

// readClaims extracts user_id and exp without verifying the signature. The
// backend remains the authority on validity; a token that does not parse
// yields zero claims.
func readClaims(token string) tokenClaims {
	var out tokenClaims
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		slog.Debug("token is not a JWT", "error", err)
		return out
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if id, ok := claims["user_id"].(float64); ok {
		out.UserID = int64(id)
	}
	return out
}
