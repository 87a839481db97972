package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/api/apitest"
	"github.com/labcentral/labcentral/internal/model"
)

const student = "ana@example.com"

type recordingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (o *recordingOpener) Open(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return nil
}

func (o *recordingOpener) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

func fastConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		BootDelay:    time.Millisecond,
		ReadyTimeout: time.Second,
		PollInterval: time.Millisecond,
	}
}

func newTestController(t *testing.T) (*Controller, *apitest.Backend, *recordingOpener, string, int64) {
	t.Helper()
	b, srv := apitest.Start(t)
	b.AddUser(student, "secret", "Ana", "Diaz", false)
	id := b.AddExercise("Redes", "Subnetting")
	client := api.New(srv.URL).WithToken(b.Token(student))
	opener := &recordingOpener{}
	return New(client, opener, fastConfig(srv.URL)), b, opener, srv.URL, id
}

func startPath(id int64) string { return fmt.Sprintf("/api/exercise/%d/start", id) }
func stopPath(id int64) string  { return fmt.Sprintf("/api/exercise/%d/stop", id) }
func statusPath(id int64) string {
	return fmt.Sprintf("/api/exercise/%d/status", id)
}

func TestStartWithoutProxyURL(t *testing.T) {
	c, b, opener, _, id := newTestController(t)
	b.NoProxyURL = true

	if err := c.Start(context.Background(), id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.Status(id); got != model.StatusRunning {
		t.Errorf("status = %q, want running", got)
	}
	if n := b.Count(http.MethodPost, startPath(id)); n != 1 {
		t.Errorf("start calls = %d, want 1", n)
	}
	if n := b.Count(http.MethodGet, statusPath(id)); n != 0 {
		t.Errorf("status polls = %d, want 0", n)
	}
	if len(opener.opened()) != 0 {
		t.Errorf("opened %v, want nothing", opener.opened())
	}
}

func TestStartWaitsForReadiness(t *testing.T) {
	c, b, opener, baseURL, id := newTestController(t)
	b.ReadyAfter = 2

	if err := c.Start(context.Background(), id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.Status(id); got != model.StatusRunning {
		t.Errorf("status = %q, want running", got)
	}
	if n := b.Count(http.MethodGet, statusPath(id)); n != 3 {
		t.Errorf("status polls = %d, want 3", n)
	}
	want := fmt.Sprintf("%s/api/exercise/%d/proxy", baseURL, id)
	if got := opener.opened(); len(got) != 1 || got[0] != want {
		t.Errorf("opened %v, want [%s]", got, want)
	}
	if got := c.ProxyURL(id); got != want {
		t.Errorf("ProxyURL = %q, want %q", got, want)
	}
}

func TestStartFailureRevertsToStopped(t *testing.T) {
	c, b, opener, _, id := newTestController(t)
	b.FailStart[id] = "no capacity"

	err := c.Start(context.Background(), id)
	if err == nil {
		t.Fatal("expected error")
	}
	if msg, ok := api.ServerMessage(err); !ok || msg != "no capacity" {
		t.Errorf("ServerMessage = %q, %v", msg, ok)
	}
	if got := c.Status(id); got != model.StatusStopped {
		t.Errorf("status = %q, want stopped", got)
	}
	if len(opener.opened()) != 0 {
		t.Error("opener called on failed start")
	}
}

func TestStartTimesOut(t *testing.T) {
	c, b, opener, _, id := newTestController(t)
	b.NeverReady = true
	c.cfg.ReadyTimeout = 30 * time.Millisecond

	err := c.Start(context.Background(), id)
	if !errors.Is(err, ErrReadyTimeout) {
		t.Fatalf("expected ErrReadyTimeout, got %v", err)
	}
	if got := c.Status(id); got != model.StatusTimedOut {
		t.Errorf("status = %q, want timed_out", got)
	}
	if len(opener.opened()) != 0 {
		t.Error("opener called before ready")
	}

	// A timed-out container can be stopped.
	if err := c.Stop(context.Background(), id); err != nil {
		t.Fatalf("Stop after timeout: %v", err)
	}
	if got := c.Status(id); got != model.StatusStopped {
		t.Errorf("status = %q, want stopped", got)
	}
}

type blockingBackend struct {
	release chan struct{}
	mu      sync.Mutex
	starts  int
}

func (b *blockingBackend) StartExercise(ctx context.Context, id int64) (*api.StartResult, error) {
	b.mu.Lock()
	b.starts++
	b.mu.Unlock()
	<-b.release
	return &api.StartResult{Message: "ok"}, nil
}

func (b *blockingBackend) StopExercise(ctx context.Context, id int64) (string, error) {
	return "ok", nil
}

func (b *blockingBackend) ExerciseStatus(ctx context.Context, id int64) (model.ContainerStatus, error) {
	return model.StatusRunning, nil
}

func TestStartWhileInFlightIsBusy(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	c := New(backend, nil, fastConfig("http://backend"))

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background(), 7) }()

	deadline := time.Now().Add(time.Second)
	for c.Status(7) != model.StatusStarting {
		if time.Now().After(deadline) {
			t.Fatal("status never became starting")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.Start(context.Background(), 7); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start = %v, want ErrBusy", err)
	}
	if err := c.Stop(context.Background(), 7); !errors.Is(err, ErrBusy) {
		t.Errorf("Stop while starting = %v, want ErrBusy", err)
	}
	if s, err := c.Refresh(context.Background(), 7); err != nil || s != model.StatusStarting {
		t.Errorf("Refresh while starting = %q, %v", s, err)
	}

	close(backend.release)
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.starts != 1 {
		t.Errorf("start calls = %d, want 1", backend.starts)
	}
}

func TestStartWhileRunningIsBusy(t *testing.T) {
	c, b, _, _, id := newTestController(t)
	b.NoProxyURL = true
	if err := c.Start(context.Background(), id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(context.Background(), id); !errors.Is(err, ErrBusy) {
		t.Fatalf("Start = %v, want ErrBusy", err)
	}
	if n := b.Count(http.MethodPost, startPath(id)); n != 1 {
		t.Errorf("start calls = %d, want 1", n)
	}
}

func TestStop(t *testing.T) {
	tests := []struct {
		name       string
		timedOut   bool
		failStop   string
		wantErr    bool
		wantStatus model.ContainerStatus
	}{
		{"success", false, "", false, model.StatusStopped},
		{"backend failure keeps running", false, "docker unavailable", true, model.StatusRunning},
		{"success after timeout", true, "", false, model.StatusStopped},
		{"backend failure keeps timed out", true, "docker unavailable", true, model.StatusTimedOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, b, _, _, id := newTestController(t)
			if tt.timedOut {
				b.NeverReady = true
				c.cfg.ReadyTimeout = 20 * time.Millisecond
				if err := c.Start(context.Background(), id); !errors.Is(err, ErrReadyTimeout) {
					t.Fatalf("Start = %v, want ErrReadyTimeout", err)
				}
			} else {
				b.NoProxyURL = true
				if err := c.Start(context.Background(), id); err != nil {
					t.Fatalf("Start: %v", err)
				}
			}
			if tt.failStop != "" {
				b.FailStop[id] = tt.failStop
			}

			err := c.Stop(context.Background(), id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Stop error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := c.Status(id); got != tt.wantStatus {
				t.Errorf("status = %q, want %q", got, tt.wantStatus)
			}
		})
	}
}

func TestStopWhenStopped(t *testing.T) {
	c, b, _, _, id := newTestController(t)
	if err := c.Stop(context.Background(), id); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop = %v, want ErrNotRunning", err)
	}
	if n := b.Count(http.MethodPost, stopPath(id)); n != 0 {
		t.Errorf("stop calls = %d, want 0", n)
	}
}

func TestRefresh(t *testing.T) {
	c, b, _, _, id := newTestController(t)

	s, err := c.Refresh(context.Background(), id)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s != model.StatusStopped {
		t.Errorf("status with no container = %q, want stopped", s)
	}

	// Another tab started the container.
	other := api.New(c.cfg.BaseURL).WithToken(b.Token(student))
	if _, err := other.StartExercise(context.Background(), id); err != nil {
		t.Fatalf("StartExercise: %v", err)
	}
	s, err = c.Refresh(context.Background(), id)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s != model.StatusRunning || c.Status(id) != model.StatusRunning {
		t.Errorf("status = %q, want running", s)
	}
	if got := c.Statuses(); got[id] != model.StatusRunning {
		t.Errorf("Statuses = %v", got)
	}
}

func TestStartAsync(t *testing.T) {
	c, b, _, _, id := newTestController(t)
	b.ReadyAfter = 1

	done := make(chan error, 1)
	if err := c.StartAsync(context.Background(), id, func(err error) { done <- err }); err != nil {
		t.Fatalf("StartAsync: %v", err)
	}
	if got := c.Status(id); got != model.StatusStarting && got != model.StatusRunning {
		t.Errorf("status right after StartAsync = %q", got)
	}
	if err := c.StartAsync(context.Background(), id, nil); !errors.Is(err, ErrBusy) {
		t.Errorf("second StartAsync = %v, want ErrBusy", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("background start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("background start never finished")
	}
	if got := c.Status(id); got != model.StatusRunning {
		t.Errorf("status = %q, want running", got)
	}
}
