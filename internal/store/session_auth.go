package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/labcentral/labcentral/internal/model"
)

// LocalSessionID is the session key the CLI uses.
const LocalSessionID = "local"

// NewSessionID returns a random session key for a browser session.
func NewSessionID() (string, error) {
	return generateToken()
}

// SaveSession inserts or replaces a session. A zero CreatedAt is set to now.
func (s *Store) SaveSession(sess model.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	var expires sql.NullTime
	if !sess.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: sess.ExpiresAt, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, token, user_id, email, first_name, last_name, is_admin, force_password_change, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET token = excluded.token, user_id = excluded.user_id,
		   email = excluded.email, first_name = excluded.first_name, last_name = excluded.last_name,
		   is_admin = excluded.is_admin, force_password_change = excluded.force_password_change,
		   expires_at = excluded.expires_at`,
		sess.ID, sess.Token, sess.User.ID, sess.User.Email, sess.User.FirstName, sess.User.LastName,
		sess.User.IsAdmin, sess.ForcePasswordChange, sess.CreatedAt, expires,
	)
	return err
}

// GetSession returns the session with the given key, or nil if not found/expired.
func (s *Store) GetSession(id string) (*model.Session, error) {
	var (
		sess    model.Session
		expires sql.NullTime
	)
	err := s.db.QueryRow(
		`SELECT id, token, user_id, email, first_name, last_name, is_admin, force_password_change, created_at, expires_at
		 FROM auth_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Token, &sess.User.ID, &sess.User.Email, &sess.User.FirstName, &sess.User.LastName,
		&sess.User.IsAdmin, &sess.ForcePasswordChange, &sess.CreatedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		sess.ExpiresAt = expires.Time
	}
	if sess.Expired(time.Now()) {
		_ = s.DeleteSession(id)
		return nil, nil
	}
	return &sess, nil
}

// DeleteSession removes a session. Preferences stored under the same key are kept.
func (s *Store) DeleteSession(id string) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, id)
	return err
}

// CleanupExpiredSessions removes all expired sessions.
func (s *Store) CleanupExpiredSessions() error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE expires_at IS NOT NULL AND expires_at < ?`, time.Now())
	return err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
