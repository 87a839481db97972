// Package lifecycle tracks and drives the container state of each exercise.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/model"
)

var (
	// ErrBusy is returned when a start or stop is requested from a state that
	// does not allow it, including while another transition is in flight.
	ErrBusy = errors.New("exercise container is busy")
	// ErrNotRunning is returned by Stop when there is nothing to stop.
	ErrNotRunning = errors.New("exercise container is not running")
	// ErrReadyTimeout is returned when a started container never reported running.
	ErrReadyTimeout = errors.New("exercise container did not become ready")
)

// Backend is the subset of the API client the controller needs.
type Backend interface {
	StartExercise(ctx context.Context, id int64) (*api.StartResult, error)
	StopExercise(ctx context.Context, id int64) (string, error)
	ExerciseStatus(ctx context.Context, id int64) (model.ContainerStatus, error)
}

// Opener presents a ready proxy URL to the user.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// Config tunes readiness polling.
type Config struct {
	// BaseURL is prefixed to the proxy path returned by the backend.
	BaseURL string
	// BootDelay is waited after a start before the first status poll.
	BootDelay time.Duration
	// ReadyTimeout bounds the whole readiness wait, boot delay included.
	ReadyTimeout time.Duration
	// PollInterval is the minimum spacing between status polls.
	PollInterval time.Duration
}

// DefaultConfig returns the delays used when none are configured.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		BootDelay:    3 * time.Second,
		ReadyTimeout: 2 * time.Minute,
		PollInterval: 2 * time.Second,
	}
}

// Controller owns the status of every exercise for one session.
type Controller struct {
	backend Backend
	opener  Opener
	cfg     Config

	mu       sync.Mutex
	statuses map[int64]model.ContainerStatus
	proxies  map[int64]string
}

// New creates a controller. A nil opener disables opening proxy URLs.
func New(backend Backend, opener Opener, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Controller{
		backend:  backend,
		opener:   opener,
		cfg:      cfg,
		statuses: map[int64]model.ContainerStatus{},
		proxies:  map[int64]string{},
	}
}

// Status returns the current status of an exercise. Unknown exercises are stopped.
func (c *Controller) Status(id int64) model.ContainerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.statuses[id]; ok {
		return s
	}
	return model.StatusStopped
}

// Statuses returns a snapshot of every tracked status.
func (c *Controller) Statuses() map[int64]model.ContainerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]model.ContainerStatus, len(c.statuses))
	for id, s := range c.statuses {
		out[id] = s
	}
	return out
}

// ProxyURL returns the absolute proxy URL of a started exercise, or "".
func (c *Controller) ProxyURL(id int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proxies[id]
}

// transition moves id to next if its current status passes allowed.
func (c *Controller) transition(id int64, allowed func(model.ContainerStatus) bool, next model.ContainerStatus) (model.ContainerStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.statuses[id]
	if !allowed(cur) {
		return cur, false
	}
	c.statuses[id] = next
	return cur, true
}

func (c *Controller) set(id int64, s model.ContainerStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[id] = s
	if s == model.StatusStopped {
		delete(c.proxies, id)
	}
}

// Start launches the exercise container and waits until it is usable. It
// makes exactly one start request; failures revert the status to stopped.
func (c *Controller) Start(ctx context.Context, id int64) error {
	if _, ok := c.transition(id, model.ContainerStatus.CanStart, model.StatusStarting); !ok {
		return ErrBusy
	}
	return c.start(ctx, id)
}

// StartAsync moves the exercise to starting and returns, running the rest of
// Start in a goroutine. done, if not nil, receives its result. ErrBusy is
// returned synchronously.
func (c *Controller) StartAsync(ctx context.Context, id int64, done func(error)) error {
	if _, ok := c.transition(id, model.ContainerStatus.CanStart, model.StatusStarting); !ok {
		return ErrBusy
	}
	go func() {
		err := c.start(ctx, id)
		if done != nil {
			done(err)
		}
	}()
	return nil
}

func (c *Controller) start(ctx context.Context, id int64) error {
	res, err := c.backend.StartExercise(ctx, id)
	if err != nil {
		c.set(id, model.StatusStopped)
		slog.Warn("exercise start failed", "exercise_id", id, "error", err)
		return fmt.Errorf("start exercise %d: %w", id, err)
	}
	if res.ProxyURL == "" {
		c.set(id, model.StatusRunning)
		slog.Info("exercise started", "exercise_id", id)
		return nil
	}

	url := c.cfg.BaseURL + res.ProxyURL
	c.mu.Lock()
	c.proxies[id] = url
	c.mu.Unlock()

	if err := c.waitReady(ctx, id); err != nil {
		c.set(id, model.StatusTimedOut)
		slog.Warn("exercise not ready", "exercise_id", id, "error", err)
		return fmt.Errorf("start exercise %d: %w", id, ErrReadyTimeout)
	}
	c.set(id, model.StatusRunning)
	slog.Info("exercise started", "exercise_id", id, "proxy_url", url)

	if c.opener != nil {
		if err := c.opener.Open(url); err != nil {
			slog.Warn("open proxy url", "url", url, "error", err)
		}
	}
	return nil
}

// waitReady sleeps the boot delay, then polls status until the backend
// reports running or the ready timeout ends.
func (c *Controller) waitReady(ctx context.Context, id int64) error {
	if c.cfg.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ReadyTimeout)
		defer cancel()
	}

	if c.cfg.BootDelay > 0 {
		timer := time.NewTimer(c.cfg.BootDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	limiter := rate.NewLimiter(rate.Every(c.cfg.PollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		status, err := c.backend.ExerciseStatus(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("status poll failed", "exercise_id", id, "error", err)
			continue
		}
		if status == model.StatusRunning {
			return nil
		}
	}
}

// Stop stops a running or timed-out container. A failed request restores the
// status the exercise had before.
func (c *Controller) Stop(ctx context.Context, id int64) error {
	cur, ok := c.transition(id, model.ContainerStatus.CanStop, model.StatusStopping)
	if !ok {
		if cur.InFlight() {
			return ErrBusy
		}
		return ErrNotRunning
	}

	if _, err := c.backend.StopExercise(ctx, id); err != nil {
		c.set(id, cur)
		slog.Warn("exercise stop failed", "exercise_id", id, "status", cur, "error", err)
		return fmt.Errorf("stop exercise %d: %w", id, err)
	}
	c.set(id, model.StatusStopped)
	slog.Info("exercise stopped", "exercise_id", id)
	return nil
}

// Refresh re-reads the backend status of an exercise. It does nothing while
// a transition is in flight.
func (c *Controller) Refresh(ctx context.Context, id int64) (model.ContainerStatus, error) {
	if s := c.Status(id); s.InFlight() {
		return s, nil
	}
	status, err := c.backend.ExerciseStatus(ctx, id)
	if err != nil {
		return c.Status(id), fmt.Errorf("refresh exercise %d: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.statuses[id].InFlight() {
		return c.statuses[id], nil
	}
	c.statuses[id] = status
	if status == model.StatusStopped {
		delete(c.proxies, id)
	}
	return status, nil
}
