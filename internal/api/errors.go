package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	// ErrUnauthorized matches any Error caused by a missing or rejected session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound matches any Error with a 404 status.
	ErrNotFound = errors.New("not found")
)

// Error is a request the backend rejected, either by status code or with an
// {"error": ...} body.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string // server-provided text, empty when the backend sent none
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Is makes errors.Is(err, ErrUnauthorized) and errors.Is(err, ErrNotFound) work.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// ServerMessage returns the message to show a user for err, if the backend sent one.
func ServerMessage(err error) (string, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

// errorFromResponse returns nil for successful responses. A 2xx response whose
// body carries a top-level "error" field is also a failure.
func errorFromResponse(method, path string, status int, body []byte) *Error {
	var result gjson.Result
	if gjson.ValidBytes(body) {
		result = gjson.ParseBytes(body)
	}
	errField := result.Get("error")

	if status >= 200 && status < 300 {
		if !result.IsObject() || !errField.Exists() || errField.Type == gjson.Null {
			return nil
		}
		if status == http.StatusOK {
			// Backends that answer 200 {"error": "Unauthorized"} on an expired session.
			status = http.StatusUnauthorized
			if !isAuthMessage(errField.String()) {
				status = http.StatusBadRequest
			}
		}
		return &Error{Method: method, Path: path, Status: status, Message: errField.String()}
	}

	msg := ""
	if result.IsObject() {
		if errField.Exists() {
			msg = errField.String()
		} else if m := result.Get("message"); m.Exists() {
			msg = m.String()
		}
	}
	return &Error{Method: method, Path: path, Status: status, Message: msg}
}

func isAuthMessage(msg string) bool {
	switch msg {
	case "Unauthorized", "Token expired", "Invalid token", "No token provided", "User not found":
		return true
	}
	return false
}
