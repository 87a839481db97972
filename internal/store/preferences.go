package store

import (
	"database/sql"
	"errors"
	"strconv"
)

const (
	prefDarkMode = "dark_mode"
	prefLang     = "lang"
)

// SetPreference upserts a preference of a session.
func (s *Store) SetPreference(sessionID, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO preferences (session_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(session_id, key) DO UPDATE SET value = ?`,
		sessionID, key, value, value,
	)
	return err
}

// GetPreference returns a preference value.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetPreference(sessionID, key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE session_id = ? AND key = ?`, sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// DarkMode reports whether dark mode is on. It defaults to off.
func (s *Store) DarkMode(sessionID string) (bool, error) {
	v, err := s.GetPreference(sessionID, prefDarkMode)
	if err != nil || v == "" {
		return false, err
	}
	return strconv.ParseBool(v)
}

// SetDarkMode stores the dark mode flag.
func (s *Store) SetDarkMode(sessionID string, on bool) error {
	return s.SetPreference(sessionID, prefDarkMode, strconv.FormatBool(on))
}

// ToggleDarkMode flips the dark mode flag and returns the new value.
func (s *Store) ToggleDarkMode(sessionID string) (bool, error) {
	on, err := s.DarkMode(sessionID)
	if err != nil {
		return false, err
	}
	return !on, s.SetDarkMode(sessionID, !on)
}

// Lang returns the stored language, or "" when unset.
func (s *Store) Lang(sessionID string) (string, error) {
	return s.GetPreference(sessionID, prefLang)
}

// SetLang stores the language.
func (s *Store) SetLang(sessionID, lang string) error {
	return s.SetPreference(sessionID, prefLang, lang)
}
