package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesObservations(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/exercise/{id}/status", 200, 20*time.Millisecond)
	m.ObserveRequest("POST", "/api/exercise/{id}/start", 0, time.Second)
	m.ObserveTransition("start", nil)
	m.ObserveTransition("stop", errors.New("boom"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`labcentral_backend_requests_total{method="GET",route="/api/exercise/{id}/status",status="200"} 1`,
		`labcentral_backend_requests_total{method="POST",route="/api/exercise/{id}/start",status="error"} 1`,
		`labcentral_backend_request_duration_seconds_count{method="GET",route="/api/exercise/{id}/status"} 1`,
		`labcentral_container_transitions_total{action="start",result="ok"} 1`,
		`labcentral_container_transitions_total{action="stop",result="error"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(), New()
	a.ObserveTransition("start", nil)
	b.ObserveTransition("start", nil)
}
