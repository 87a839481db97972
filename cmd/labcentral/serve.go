package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/handler"
	appI18n "github.com/labcentral/labcentral/internal/i18n"
	"github.com/labcentral/labcentral/internal/llm"
	"github.com/labcentral/labcentral/internal/metrics"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/session"
	"github.com/labcentral/labcentral/internal/store"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web console",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /lab)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("llm-url", "", "OpenAI-compatible API base URL for grade suggestions (empty = disabled)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}

	lang := appI18n.Normalize(v.GetString("lang"))
	if err := appI18n.Init(appI18n.DefaultLang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// The grading assistant is optional.
	var llmClient *llm.Client
	if url := v.GetString("llm-url"); url != "" {
		llmClient = llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"))
		if err := llmClient.Ping(context.Background()); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
	}

	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	m := metrics.New()
	apiURL := v.GetString("api-url")
	sessions := session.NewManager(api.New(apiURL, api.WithObserver(m)), db)

	h, err := handler.New(db, sessions, llmClient, m, model.ConsoleConfig{
		APIURL:        apiURL,
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		Lang:          lang,
		BootDelay:     v.GetDuration("boot-delay"),
		ReadyTimeout:  v.GetDuration("ready-timeout"),
		PollInterval:  v.GetDuration("poll-interval"),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"api_url", apiURL,
		"lang", lang,
		"base_path", basePath,
		"assistant", llmClient != nil,
	)
	return http.ListenAndServe(addr, r)
}
