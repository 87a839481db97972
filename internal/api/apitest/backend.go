// Package apitest provides an in-memory LabCentral backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/labcentral/labcentral/internal/model"
)

const signingKey = "apitest-secret"

// Request is one request the backend received.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

type account struct {
	model.User
	Password    string
	ForceChange bool
}

type questionRec struct {
	ExerciseID int64
	model.Question
}

type answerRec struct {
	ID         int64
	QuestionID int64
	Email      string
	Text       string
	Score      *float64
	Feedback   string
}

type groupRec struct {
	ID         int64
	ExerciseID int64
	Leader     string
	Partner    string
}

type groupAnswerRec struct {
	ID         int64
	GroupID    int64
	QuestionID int64
	Text       string
	Score      *float64
}

type containerKey struct {
	Email      string
	ExerciseID int64
}

type container struct {
	PollsUntilReady int
}

// Backend is a fake of the backend HTTP contract. Its exported fields are
// knobs tests may set before issuing requests.
type Backend struct {
	mu sync.Mutex

	// FailStart and FailStop make the matching call answer 500 with the given error.
	FailStart map[int64]string
	FailStop  map[int64]string
	// FailGet makes GET requests to a path answer 500 with the given error.
	FailGet map[string]string
	// NoProxyURL makes start answer {"message": ...} without a proxy_url.
	NoProxyURL bool
	// ReadyAfter is how many status polls report "stopped" after a start.
	ReadyAfter int
	// NeverReady keeps started containers reporting "stopped" forever.
	NeverReady bool
	// LegacyAnswers makes my_answers return bare strings.
	LegacyAnswers bool

	nextID       int64
	accounts     map[string]*account
	exercises    map[int64]*model.Exercise
	archives     map[int64][]byte
	questions    map[int64]*questionRec
	answers      []*answerRec
	groups       map[int64]*groupRec
	groupAnswers []*groupAnswerRec
	containers   map[containerKey]*container
	resetTokens  map[string]string
	requests     []Request
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{
		FailStart:   map[int64]string{},
		FailStop:    map[int64]string{},
		FailGet:     map[string]string{},
		accounts:    map[string]*account{},
		exercises:   map[int64]*model.Exercise{},
		archives:    map[int64][]byte{},
		questions:   map[int64]*questionRec{},
		groups:      map[int64]*groupRec{},
		containers:  map[containerKey]*container{},
		resetTokens: map[string]string{},
	}
}

// Start serves a new backend for the duration of the test.
func Start(t testing.TB) (*Backend, *httptest.Server) {
	t.Helper()
	b := New()
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *Backend) id() int64 {
	b.nextID++
	return b.nextID
}

// AddUser registers an account.
func (b *Backend) AddUser(email, password, firstName, lastName string, admin bool) model.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := &account{
		User:     model.User{ID: b.id(), Email: email, FirstName: firstName, LastName: lastName, IsAdmin: admin},
		Password: password,
	}
	b.accounts[email] = a
	return a.User
}

// RequirePasswordChange flags an account so its next login must change password.
func (b *Backend) RequirePasswordChange(email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.accounts[email]; ok {
		a.ForceChange = true
	}
}

// AddExercise creates an exercise and returns its id.
func (b *Backend) AddExercise(title, description string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.id()
	b.exercises[id] = &model.Exercise{ID: id, Title: title, Description: description}
	return id
}

// AddQuestion creates a question and returns its id.
func (b *Backend) AddQuestion(exerciseID int64, q model.Question) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	q.ID = b.id()
	b.questions[q.ID] = &questionRec{ExerciseID: exerciseID, Question: q}
	return q.ID
}

// AddAnswer records an individual answer and returns its id.
func (b *Backend) AddAnswer(questionID int64, email, text string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := &answerRec{ID: b.id(), QuestionID: questionID, Email: email, Text: text}
	b.answers = append(b.answers, a)
	return a.ID
}

// AddGroup pairs two users on an exercise and returns the group id.
func (b *Backend) AddGroup(exerciseID int64, leader, partner string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := &groupRec{ID: b.id(), ExerciseID: exerciseID, Leader: leader, Partner: partner}
	b.groups[g.ID] = g
	return g.ID
}

// AddGroupAnswer records a joint answer and returns its id.
func (b *Backend) AddGroupAnswer(groupID, questionID int64, text string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := &groupAnswerRec{ID: b.id(), GroupID: groupID, QuestionID: questionID, Text: text}
	b.groupAnswers = append(b.groupAnswers, a)
	return a.ID
}

// Exercise returns the stored exercise, if any.
func (b *Backend) Exercise(id int64) (model.Exercise, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.exercises[id]
	if !ok {
		return model.Exercise{}, false
	}
	return *e, true
}

// Archive returns the uploaded archive of an exercise.
func (b *Backend) Archive(id int64) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.archives[id]
}

// Question returns the stored question, if any.
func (b *Backend) Question(id int64) (model.Question, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.questions[id]
	if !ok {
		return model.Question{}, false
	}
	return q.Question, true
}

// AnswerScore returns the stored score and feedback of an individual answer.
func (b *Backend) AnswerScore(answerID int64) (*float64, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.answers {
		if a.ID == answerID {
			return a.Score, a.Feedback
		}
	}
	return nil, ""
}

// GroupAnswerScore returns the stored score of a group answer.
func (b *Backend) GroupAnswerScore(answerID int64) *float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.groupAnswers {
		if a.ID == answerID {
			return a.Score
		}
	}
	return nil
}

// ContainerRunning reports whether email has a started container for the exercise.
func (b *Backend) ContainerRunning(email string, exerciseID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.containers[containerKey{email, exerciseID}]
	return ok
}

// Requests returns every request received so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Count returns how many requests matched method and path exactly.
func (b *Backend) Count(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// LastBody returns the body of the most recent request matching method and path.
func (b *Backend) LastBody(method, path string) []byte {
	reqs := b.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && reqs[i].Path == path {
			return reqs[i].Body
		}
	}
	return nil
}

// Token issues a session token for email without a login request.
func (b *Backend) Token(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.accounts[email]
	if a == nil {
		return ""
	}
	return b.sign(a)
}

func (b *Backend) sign(a *account) string {
	claims := jwt.MapClaims{
		"user_id":  a.ID,
		"email":    a.Email,
		"is_admin": a.IsAdmin,
		"exp":      time.Now().Add(12 * time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		panic(err)
	}
	return s
}

// Handler returns the HTTP handler serving the backend contract.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Post("/api/login", b.handleLogin)
	r.Post("/api/signup", b.handleSignup)
	r.Post("/api/request_password_reset", b.handleRequestReset)
	r.Post("/api/reset_password", b.handleResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(b.requireAuth)
		r.Post("/api/logout", b.handleLogout)
		r.Get("/api/user", b.handleUser)
		r.Post("/api/force_change_password", b.handleForceChange)
		r.Get("/api/exercises", b.handleListExercises)
		r.Get("/api/exercise/{id}", b.handleGetExercise)
		r.Post("/api/exercise/{id}/start", b.handleStart)
		r.Post("/api/exercise/{id}/stop", b.handleStop)
		r.Get("/api/exercise/{id}/status", b.handleStatus)
		r.Get("/api/exercise/{id}/questions", b.handleListQuestions)
		r.Post("/api/exercise/{id}/question/{qid}/answer", b.handleSubmitAnswer)
		r.Get("/api/exercise/{id}/my_answers", b.handleMyAnswers)
		r.Get("/api/exercise/{id}/my_group_scores", b.handleMyGroupScores)
		r.Get("/api/exercise/{id}/my_group", b.handleMyGroup)
		r.Post("/api/exercise/{id}/group", b.handleCreateGroup)
		r.Delete("/api/exercise/{id}/group", b.handleDisbandGroup)
		r.Get("/api/exercise/{id}/available_users", b.handleAvailableUsers)

		r.Group(func(r chi.Router) {
			r.Use(b.requireAdmin)
			r.Post("/api/exercise_with_zip", b.handleCreateExercise)
			r.Delete("/api/exercise/{id}", b.handleDeleteExercise)
			r.Post("/api/exercise/{id}/questions", b.handleCreateQuestion)
			r.Patch("/api/exercise/{id}/question/{qid}", b.handleUpdateQuestion)
			r.Delete("/api/exercise/{id}/question/{qid}", b.handleDeleteQuestion)
			r.Get("/api/admin/exercise/{id}/answers", b.handleAdminAnswers)
			r.Patch("/api/admin/answer/{mode}/{aid}", b.handlePatchAnswer)
			r.Post("/api/admin/bulk_create_users", b.handleBulkCreate)
		})
	})
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		b.mu.Lock()
		b.requests = append(b.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
		failure := ""
		if r.Method == http.MethodGet {
			failure = b.FailGet[r.URL.Path]
		}
		b.mu.Unlock()
		if failure != "" {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": failure})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			if ck, err := r.Cookie("session_token"); err == nil {
				token = ck.Value
			}
		}
		parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return []byte(signingKey), nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
			return
		}
		claims, _ := parsed.Claims.(jwt.MapClaims)
		email, _ := claims["email"].(string)
		b.mu.Lock()
		a := b.accounts[email]
		b.mu.Unlock()
		if a == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "User not found"})
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithAccount(r, a)))
	})
}

func (b *Backend) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !accountFrom(r).IsAdmin {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "Forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}

func userJSON(a *account) map[string]any {
	if a == nil {
		return map[string]any{}
	}
	return map[string]any{
		"id":         a.ID,
		"email":      a.Email,
		"first_name": a.FirstName,
		"last_name":  a.LastName,
	}
}

func proxyURL(exerciseID int64) string {
	return fmt.Sprintf("/api/exercise/%d/proxy", exerciseID)
}
