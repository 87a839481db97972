package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labcentral/labcentral/internal/handler/views"
	appI18n "github.com/labcentral/labcentral/internal/i18n"
)

const flashCookieName = "flash"

// setFlash stores a one-shot alert for the next page render.
func setFlash(w http.ResponseWriter, path string, secure bool, kind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(kind + ":" + message),
		Path:     path,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash reads and clears the pending alert.
func takeFlash(w http.ResponseWriter, r *http.Request, path string) views.Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return views.Flash{}
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: path, MaxAge: -1, HttpOnly: true})
	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return views.Flash{}
	}
	kind, message, ok := strings.Cut(raw, ":")
	if !ok {
		return views.Flash{}
	}
	return views.Flash{Kind: kind, Message: message}
}

// redirectBack returns to the page that posted, staying on this host.
func (h *Handler) redirectBack(w http.ResponseWriter, r *http.Request) {
	target := h.path("/")
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" && ref.Host == r.Host {
		target = ref.RequestURI()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleToggleDarkMode(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.ToggleDarkMode(browserKeyFrom(r.Context())); err != nil {
		slog.Error("failed to toggle dark mode", "error", err)
	}
	h.redirectBack(w, r)
}

func (h *Handler) handleSetLang(w http.ResponseWriter, r *http.Request) {
	lang := appI18n.Normalize(r.FormValue("lang"))
	if err := h.store.SetLang(browserKeyFrom(r.Context()), lang); err != nil {
		slog.Error("failed to store language", "error", err)
	}
	h.redirectBack(w, r)
}

// langFor returns the language of the request: the stored preference, else
// the configured default.
func (h *Handler) langFor(r *http.Request) string {
	if key := browserKeyFrom(r.Context()); key != "" {
		lang, err := h.store.Lang(key)
		if err != nil {
			slog.Warn("read language", "error", err)
		}
		if lang != "" {
			return appI18n.Normalize(lang)
		}
	}
	if h.config.Lang != "" {
		return appI18n.Normalize(h.config.Lang)
	}
	return ""
}
