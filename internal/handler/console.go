package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/labcentral/labcentral/internal/accounts"
	"github.com/labcentral/labcentral/internal/handler/views"
	"github.com/labcentral/labcentral/internal/lifecycle"
	"github.com/labcentral/labcentral/internal/model"
)

// console is the in-memory state of one logged-in browser.
type console struct {
	token   string
	expires time.Time
	ctrl  *lifecycle.Controller
	queue *accounts.Queue

	mu         sync.Mutex
	startErrs  map[int64]error
	created    []model.CreatedUser
	suggestion *views.Suggestion
}

// console returns the state of sess, replacing it when the token changed.
// Creating one also drops the consoles of sessions that have expired.
func (h *Handler) console(sess *model.Session) *console {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.consoles[sess.ID]
	if c == nil || c.token != sess.Token {
		h.pruneConsoles(time.Now())
		c = &console{
			token:     sess.Token,
			expires:   sess.ExpiresAt,
			ctrl:      lifecycle.New(h.sessions.Client(sess), nil, h.lifecycleConfig()),
			queue:     &accounts.Queue{},
			startErrs: map[int64]error{},
		}
		h.consoles[sess.ID] = c
	}
	return c
}

// pruneConsoles must be called with h.mu held.
func (h *Handler) pruneConsoles(now time.Time) {
	for key, c := range h.consoles {
		if !c.expires.IsZero() && now.After(c.expires) {
			delete(h.consoles, key)
		}
	}
}

func (h *Handler) dropConsole(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.consoles, key)
}

// startInBackground moves the exercise to starting and finishes the start
// outside the request. A failure is kept until the next page shows it.
func (h *Handler) startInBackground(c *console, exerciseID int64) error {
	cfg := h.lifecycleConfig()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.BootDelay+cfg.ReadyTimeout)
	err := c.ctrl.StartAsync(ctx, exerciseID, func(err error) {
		defer cancel()
		if h.metrics != nil {
			h.metrics.ObserveTransition("start", err)
		}
		if err != nil {
			slog.Warn("background start failed", "exercise_id", exerciseID, "error", err)
			c.mu.Lock()
			c.startErrs[exerciseID] = err
			c.mu.Unlock()
		}
	})
	if err != nil {
		cancel()
	}
	return err
}

// takeStartError returns and clears the last start failure of an exercise.
func (c *console) takeStartError(exerciseID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.startErrs[exerciseID]
	delete(c.startErrs, exerciseID)
	return err
}

func (c *console) setCreated(users []model.CreatedUser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = users
}

func (c *console) takeCreated() []model.CreatedUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.created
	c.created = nil
	return out
}

func (c *console) setSuggestion(s *views.Suggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suggestion = s
}

func (c *console) takeSuggestion() *views.Suggestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.suggestion
	c.suggestion = nil
	return s
}
