// Package handler serves the web console over the backend API.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/labcentral/labcentral/internal/alert"
	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/grading"
	"github.com/labcentral/labcentral/internal/handler/views"
	appI18n "github.com/labcentral/labcentral/internal/i18n"
	"github.com/labcentral/labcentral/internal/lifecycle"
	"github.com/labcentral/labcentral/internal/llm"
	"github.com/labcentral/labcentral/internal/metrics"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/session"
	"github.com/labcentral/labcentral/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	sessions  *session.Manager
	assistant grading.Assistant
	metrics   *metrics.Metrics
	config    model.ConsoleConfig

	mu       sync.Mutex
	consoles map[string]*console
}

// New creates a new Handler. l and m may be nil.
func New(s *store.Store, sessions *session.Manager, l *llm.Client, m *metrics.Metrics, cfg model.ConsoleConfig) (*Handler, error) {
	if s == nil || sessions == nil {
		return nil, errors.New("handler needs a store and a session manager")
	}
	if cfg.APIURL == "" {
		return nil, errors.New("handler needs the backend API URL")
	}
	h := &Handler{
		store:    s,
		sessions: sessions,
		metrics:  m,
		config:   cfg,
		consoles: map[string]*console{},
	}
	if l != nil {
		h.assistant = l
	}
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(h.browserSession)
		r.Use(appI18n.Middleware(h.langFor))
		r.Use(h.csrfMiddleware)

		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.Get("/signup", h.handleSignupPage)
		r.Post("/signup", h.handleSignup)
		r.Get("/password/forgot", h.handleForgotPage)
		r.Post("/password/forgot", h.handleForgot)
		r.Get("/password/reset", h.handleResetPage)
		r.Post("/password/reset", h.handleReset)
		r.Get("/password/force", h.handleForcePage)
		r.Post("/password/force", h.handleForce)
		r.Post("/prefs/dark-mode", h.handleToggleDarkMode)
		r.Post("/prefs/lang", h.handleSetLang)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/", h.handleDashboard)
			r.Get("/exercises/{exerciseID}", h.handleExercisePage)
			r.Get("/exercises/{exerciseID}/status", h.handleStatusFragment)
			r.Post("/exercises/{exerciseID}/start", h.handleStart)
			r.Post("/exercises/{exerciseID}/stop", h.handleStop)
			r.Post("/exercises/{exerciseID}/questions/{questionID}/answer", h.handleAnswer)
			r.Get("/exercises/{exerciseID}/group", h.handleGroupPage)
			r.Post("/exercises/{exerciseID}/group", h.handleCreateGroup)
			r.Post("/exercises/{exerciseID}/group/disband", h.handleDisbandGroup)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Post("/exercises", h.handleCreateExercise)
				r.Post("/exercises/{exerciseID}/delete", h.handleDeleteExercise)
				r.Post("/exercises/{exerciseID}/questions", h.handleCreateQuestion)
				r.Post("/exercises/{exerciseID}/questions/{questionID}", h.handleEditQuestion)
				r.Post("/exercises/{exerciseID}/questions/{questionID}/delete", h.handleDeleteQuestion)
				r.Get("/admin/exercises/{exerciseID}/grading", h.handleGradingPage)
				r.Get("/admin/exercises/{exerciseID}/grading/export", h.handleExportGrades)
				r.Post("/admin/exercises/{exerciseID}/grading/{mode}/{answerID}", h.handleSaveScore)
				r.Post("/admin/exercises/{exerciseID}/grading/{mode}/{answerID}/suggest", h.handleSuggest)
				r.Get("/admin/users", h.handleUsersPage)
				r.Post("/admin/users/queue", h.handleQueueUser)
				r.Post("/admin/users/queue/{index}/delete", h.handleUnqueueUser)
				r.Post("/admin/users/submit", h.handleSubmitUsers)
			})
		})
	})
}

// BasePathMiddleware stores the deployment prefix in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) lifecycleConfig() lifecycle.Config {
	cfg := lifecycle.DefaultConfig(h.config.APIURL)
	if h.config.BootDelay > 0 {
		cfg.BootDelay = h.config.BootDelay
	}
	if h.config.ReadyTimeout > 0 {
		cfg.ReadyTimeout = h.config.ReadyTimeout
	}
	if h.config.PollInterval > 0 {
		cfg.PollInterval = h.config.PollInterval
	}
	return cfg
}

// chrome collects the page header state of the request and consumes its flash.
func (h *Handler) chrome(w http.ResponseWriter, r *http.Request) views.Chrome {
	key := browserKeyFrom(r.Context())
	c := views.Chrome{
		Session: model.SessionFromContext(r.Context()),
		Flash:   takeFlash(w, r, h.cookiePath()),
		Lang:    h.langFor(r),
	}
	if c.Lang == "" {
		c.Lang = appI18n.Normalize(h.config.Lang)
	}
	if key != "" {
		dark, err := h.store.DarkMode(key)
		if err != nil {
			slog.Warn("read dark mode", "error", err)
		}
		c.DarkMode = dark
	}
	return c
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// fail renders err as an error page. Backend rejections of the token send
// the user back to login.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrNotAuthenticated) {
		h.redirectToLogin(w, r)
		return
	}
	status := http.StatusBadGateway
	switch id, _ := alert.ID(err); id {
	case "AlertNotFound":
		status = http.StatusNotFound
	case "AlertAdminOnly":
		status = http.StatusForbidden
	}
	slog.Warn("request failed", "path", r.URL.Path, "error", err)
	render(w, r, status, views.ErrorPage(h.chrome(w, r), alert.Message(r.Context(), err)))
}

// back redirects to target with err as the flash alert, or with the
// translation of okID on success.
func (h *Handler) back(w http.ResponseWriter, r *http.Request, target string, err error, okID string) {
	switch {
	case err != nil:
		setFlash(w, h.cookiePath(), h.config.SecureCookies, "error", alert.Message(r.Context(), err))
	case okID != "":
		setFlash(w, h.cookiePath(), h.config.SecureCookies, "success", appI18n.T(r.Context(), okID))
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", h.path(target))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, h.path(target), http.StatusSeeOther)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, chi.URLParam(r, name))
	}
	return id, nil
}

func exercisePath(id int64) string {
	return "/exercises/" + strconv.FormatInt(id, 10)
}

// clientFor returns an API client authenticated as the request's session.
func (h *Handler) clientFor(ctx context.Context) *api.Client {
	return h.sessions.Client(model.SessionFromContext(ctx))
}
