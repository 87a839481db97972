package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labcentral/labcentral/internal/alert"
	"github.com/labcentral/labcentral/internal/exercises"
	"github.com/labcentral/labcentral/internal/handler/views"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/session"
	"github.com/labcentral/labcentral/internal/store"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"

	// maxFormBytes bounds request bodies; exercise archives are the largest.
	maxFormBytes = exercises.MaxArchiveBytes + 1<<20
)

type browserKeyCtxKey struct{}

func browserKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(browserKeyCtxKey{}).(string)
	return key
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// browserSession gives every browser a random key in the session cookie. The
// key names its backend session and its preferences in the store.
func (h *Handler) browserSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			key = cookie.Value
		}
		if key == "" {
			var err error
			key, err = store.NewSessionID()
			if err != nil {
				slog.Error("failed to generate session key", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    key,
				Path:     h.cookiePath(),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   h.config.SecureCookies,
			})
		}
		ctx := context.WithValue(r.Context(), browserKeyCtxKey{}, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: false,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// csrfMiddleware issues a token cookie on safe requests and requires the same
// token in the csrf_token form field of every other request. The token is kept
// for the life of the cookie so that polling fragments do not invalidate open forms.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(csrfCookieName)
		hasCookie := err == nil && cookie.Value != ""

		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			token := ""
			if hasCookie {
				token = cookie.Value
			} else {
				token, err = generateCSRFToken()
				if err != nil {
					slog.Error("failed to generate CSRF token", "error", err)
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				h.setCSRFCookie(w, token)
			}
			ctx := model.ContextWithCSRFToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if !hasCookie {
			slog.Warn("CSRF cookie missing")
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		formToken := r.FormValue("csrf_token")
		if formToken == "" {
			slog.Warn("CSRF form token missing")
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		if len(formToken) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(formToken), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch")
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}

		ctx := model.ContextWithCSRFToken(r.Context(), cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth checks the browser's backend session on every request.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessions.Current(r.Context(), browserKeyFrom(r.Context()))
		switch {
		case errors.Is(err, session.ErrPasswordChangeRequired):
			h.redirect(w, r, "/password/force")
			return
		case errors.Is(err, session.ErrNotAuthenticated):
			h.dropConsole(browserKeyFrom(r.Context()))
			h.redirectToLogin(w, r)
			return
		case err != nil:
			slog.Error("failed to check session", "error", err)
			render(w, r, http.StatusBadGateway, views.ErrorPage(h.chrome(w, r), alert.Message(r.Context(), err)))
			return
		}

		ctx := model.ContextWithSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects sessions without the admin flag.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := model.SessionFromContext(r.Context())
		if sess == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !sess.User.IsAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", h.path(target))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, h.path(target), http.StatusSeeOther)
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/login")
}

// withError returns the page chrome with err as its alert.
func (h *Handler) withError(w http.ResponseWriter, r *http.Request, err error) views.Chrome {
	c := h.chrome(w, r)
	c.Flash = views.Flash{Kind: "error", Message: alert.Message(r.Context(), err)}
	return c
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.LoginPage(h.chrome(w, r), ""))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds := model.Credentials{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}
	sess, err := h.sessions.Login(r.Context(), browserKeyFrom(r.Context()), creds)
	if err != nil {
		render(w, r, http.StatusUnauthorized, views.LoginPage(h.withError(w, r, err), creds.Email))
		return
	}
	if sess.ForcePasswordChange {
		http.Redirect(w, r, h.path("/password/force"), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	key := browserKeyFrom(r.Context())
	if err := h.sessions.Logout(r.Context(), key); err != nil {
		slog.Error("failed to log out", "error", err)
	}
	h.dropConsole(key)
	http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
}

func (h *Handler) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.SignupPage(h.chrome(w, r), ""))
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	creds := model.Credentials{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}
	if _, err := h.sessions.Signup(r.Context(), creds, r.FormValue("confirm_password")); err != nil {
		render(w, r, http.StatusBadRequest, views.SignupPage(h.withError(w, r, err), creds.Email))
		return
	}
	h.back(w, r, "/login", nil, "SignupSuccess")
}

func (h *Handler) handleForgotPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.ForgotPasswordPage(h.chrome(w, r), "", ""))
}

func (h *Handler) handleForgot(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	res, err := h.sessions.RequestPasswordReset(r.Context(), email)
	if err != nil {
		render(w, r, http.StatusBadRequest, views.ForgotPasswordPage(h.withError(w, r, err), email, ""))
		return
	}
	c := h.chrome(w, r)
	if res.Message != "" {
		c.Flash = views.Flash{Kind: "success", Message: res.Message}
	}
	render(w, r, http.StatusOK, views.ForgotPasswordPage(c, email, res.ResetToken))
}

func (h *Handler) handleResetPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.ResetPasswordPage(h.chrome(w, r), r.URL.Query().Get("token")))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("token")
	if _, err := h.sessions.ResetPassword(r.Context(), token, r.FormValue("new_password")); err != nil {
		render(w, r, http.StatusBadRequest, views.ResetPasswordPage(h.withError(w, r, err), token))
		return
	}
	h.back(w, r, "/login", nil, "PasswordResetSuccess")
}

func (h *Handler) handleForcePage(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Pending(browserKeyFrom(r.Context()))
	if err != nil {
		h.redirectToLogin(w, r)
		return
	}
	if !sess.ForcePasswordChange {
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	}
	render(w, r, http.StatusOK, views.ForcePasswordPage(h.chrome(w, r)))
}

func (h *Handler) handleForce(w http.ResponseWriter, r *http.Request) {
	_, err := h.sessions.ForceChangePassword(r.Context(), browserKeyFrom(r.Context()), r.FormValue("new_password"))
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		h.redirectToLogin(w, r)
	case err != nil:
		h.back(w, r, "/password/force", err, "")
	default:
		h.back(w, r, "/login", nil, "PasswordChangedLoginAgain")
	}
}
