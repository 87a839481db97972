package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/api/apitest"
	"github.com/labcentral/labcentral/internal/model"
)

type recordingObserver struct {
	mu     sync.Mutex
	routes []string
}

func (o *recordingObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, method+" "+route)
}

func loggedIn(t *testing.T, b *apitest.Backend, srv *httptest.Server, email string) *api.Client {
	t.Helper()
	return api.New(srv.URL).WithToken(b.Token(email))
}

func TestLogin(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "Ana", "Diaz", true)
	c := api.New(srv.URL)

	res, err := c.Login(context.Background(), model.Credentials{Email: "ana@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected a token")
	}
	if !res.IsAdmin {
		t.Error("expected admin flag")
	}

	u, err := c.WithToken(res.Token).CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if u.Email != "ana@example.com" || u.FirstName != "Ana" {
		t.Errorf("user = %+v", u)
	}
}

func TestLoginRejected(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "", "", false)

	_, err := api.New(srv.URL).Login(context.Background(), model.Credentials{Email: "ana@example.com", Password: "wrong"})
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	msg, ok := api.ServerMessage(err)
	if !ok || msg != "Invalid credentials" {
		t.Errorf("ServerMessage = %q, %v", msg, ok)
	}
}

func TestLoginTokenFromCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: api.SessionCookieName, Value: "cookie-token"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok","is_admin":false}`))
	}))
	defer srv.Close()

	res, err := api.New(srv.URL).Login(context.Background(), model.Credentials{Email: "a@b.c", Password: "x"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != "cookie-token" {
		t.Errorf("token = %q, want cookie-token", res.Token)
	}
}

func TestErrorDecoding(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantStatus int
		wantMsg    string
	}{
		{"plain success", 200, `{"message":"ok"}`, false, 0, ""},
		{"null error field", 200, `{"error":null,"message":"ok"}`, false, 0, ""},
		{"success object", 200, `{"id":1,"title":"Redes"}`, false, 0, ""},
		{"error field on 200", 200, `{"error":"Unauthorized"}`, true, 401, "Unauthorized"},
		{"domain error on 200", 200, `{"error":"Question closed"}`, true, 400, "Question closed"},
		{"error field on 500", 500, `{"error":"docker down"}`, true, 500, "docker down"},
		{"message field on 403", 403, `{"message":"Forbidden"}`, true, 403, "Forbidden"},
		{"non json 502", 502, `Bad Gateway`, true, 502, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := api.New(srv.URL).GetExercise(context.Background(), 1)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var apiErr *api.Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *api.Error, got %v", err)
			}
			if apiErr.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", apiErr.Status, tt.wantStatus)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestUnauthenticatedRequest(t *testing.T) {
	_, srv := apitest.Start(t)
	_, err := api.New(srv.URL).ListExercises(context.Background())
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestExerciseLifecycleCalls(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "", "", false)
	id := b.AddExercise("Redes", "Subnetting")
	c := loggedIn(t, b, srv, "ana@example.com")
	ctx := context.Background()

	status, err := c.ExerciseStatus(ctx, id)
	if err != nil {
		t.Fatalf("ExerciseStatus: %v", err)
	}
	if status != model.StatusStopped {
		t.Errorf("status before start = %q", status)
	}

	res, err := c.StartExercise(ctx, id)
	if err != nil {
		t.Fatalf("StartExercise: %v", err)
	}
	if !strings.HasPrefix(res.ProxyURL, "/api/exercise/") {
		t.Errorf("proxy url = %q", res.ProxyURL)
	}
	status, _ = c.ExerciseStatus(ctx, id)
	if status != model.StatusRunning {
		t.Errorf("status after start = %q", status)
	}

	if _, err := c.StopExercise(ctx, id); err != nil {
		t.Fatalf("StopExercise: %v", err)
	}
	if b.ContainerRunning("ana@example.com", id) {
		t.Error("container still running after stop")
	}
}

func TestMyAnswersForms(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		b, srv := apitest.Start(t)
		b.LegacyAnswers = legacy
		b.AddUser("ana@example.com", "secret", "", "", false)
		ex := b.AddExercise("Redes", "")
		qid := b.AddQuestion(ex, model.Question{Text: "¿Qué es ARP?", Type: model.QuestionOpen, Score: 2})
		c := loggedIn(t, b, srv, "ana@example.com")

		if err := c.SubmitAnswer(context.Background(), ex, qid, "Resolución de direcciones"); err != nil {
			t.Fatalf("SubmitAnswer: %v", err)
		}
		answers, err := c.MyAnswers(context.Background(), ex)
		if err != nil {
			t.Fatalf("MyAnswers (legacy=%v): %v", legacy, err)
		}
		got, ok := answers[qid]
		if !ok {
			t.Fatalf("answer for %d missing (legacy=%v)", qid, legacy)
		}
		if got.AnswerText != "Resolución de direcciones" || got.QuestionID != qid {
			t.Errorf("answer = %+v (legacy=%v)", got, legacy)
		}
	}
}

func TestPatchAnswerSendsNullScore(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("admin@example.com", "secret", "", "", true)
	ex := b.AddExercise("Redes", "")
	qid := b.AddQuestion(ex, model.Question{Text: "q", Type: model.QuestionOpen, Score: 2})
	aid := b.AddAnswer(qid, "ana@example.com", "a")
	c := loggedIn(t, b, srv, "admin@example.com")

	score := 1.5
	if err := c.PatchAnswer(context.Background(), api.ModeIndividual, aid, api.ScorePatch{Score: &score}); err != nil {
		t.Fatalf("PatchAnswer: %v", err)
	}
	if got, _ := b.AnswerScore(aid); got == nil || *got != 1.5 {
		t.Fatalf("score = %v, want 1.5", got)
	}

	if err := c.PatchAnswer(context.Background(), api.ModeIndividual, aid, api.ScorePatch{}); err != nil {
		t.Fatalf("PatchAnswer clear: %v", err)
	}
	body := string(b.LastBody(http.MethodPatch, "/api/admin/answer/individual/"+strconv.FormatInt(aid, 10)))
	if !strings.Contains(body, `"score":null`) {
		t.Errorf("body = %s, want explicit null score", body)
	}
	if got, _ := b.AnswerScore(aid); got != nil {
		t.Errorf("score = %v, want nil", *got)
	}
}

func TestMyGroupNone(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "", "", false)
	ex := b.AddExercise("Redes", "")

	g, err := loggedIn(t, b, srv, "ana@example.com").MyGroup(context.Background(), ex)
	if err != nil {
		t.Fatalf("MyGroup: %v", err)
	}
	if g != nil {
		t.Errorf("group = %+v, want nil", g)
	}
}

func TestCreateExerciseWithArchive(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("admin@example.com", "secret", "", "", true)
	c := loggedIn(t, b, srv, "admin@example.com")

	archive := "PK\x03\x04fake"
	if _, err := c.CreateExerciseWithArchive(context.Background(), "Redes", "desc", "lab.zip", strings.NewReader(archive)); err != nil {
		t.Fatalf("CreateExerciseWithArchive: %v", err)
	}
	exercises, err := c.ListExercises(context.Background())
	if err != nil {
		t.Fatalf("ListExercises: %v", err)
	}
	if len(exercises) != 1 || exercises[0].Title != "Redes" {
		t.Fatalf("exercises = %+v", exercises)
	}
	if got := string(b.Archive(exercises[0].ID)); got != archive {
		t.Errorf("archive = %q", got)
	}
}

func TestObserverRouteLabels(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "", "", false)
	ex := b.AddExercise("Redes", "")
	obs := &recordingObserver{}
	c := api.New(srv.URL, api.WithObserver(obs)).WithToken(b.Token("ana@example.com"))

	if _, err := c.ExerciseStatus(context.Background(), ex); err != nil {
		t.Fatalf("ExerciseStatus: %v", err)
	}
	if len(obs.routes) != 1 || obs.routes[0] != "GET /api/exercise/{id}/status" {
		t.Errorf("routes = %v", obs.routes)
	}
}
