package model

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// User is the identity reported by the backend for the current session.
type User struct {
	ID        int64  `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
}

// DisplayName returns "First Last", falling back to the email.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Credentials are the inputs of a login or signup.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is a locally stored backend session.
type Session struct {
	ID                  string
	Token               string
	User                User
	ForcePasswordChange bool
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// Expired reports whether the session is past its expiry. A zero expiry never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Exercise is a launchable lab unit.
type Exercise struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ContainerStatus is the displayed lifecycle label of an exercise sandbox.
type ContainerStatus string

const (
	StatusStopped  ContainerStatus = "stopped"
	StatusStarting ContainerStatus = "starting"
	StatusRunning  ContainerStatus = "running"
	StatusStopping ContainerStatus = "stopping"
	// StatusTimedOut means the backend accepted a start but never reported ready.
	StatusTimedOut ContainerStatus = "timed_out"
)

// ParseBackendStatus maps the /status endpoint vocabulary onto ContainerStatus.
// Anything other than "running" is treated as stopped.
func ParseBackendStatus(s string) ContainerStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(StatusRunning)) {
		return StatusRunning
	}
	return StatusStopped
}

// InFlight reports whether a start or stop request is outstanding.
func (s ContainerStatus) InFlight() bool {
	return s == StatusStarting || s == StatusStopping
}

// CanStart reports whether Start is a valid transition from s.
func (s ContainerStatus) CanStart() bool {
	return s == StatusStopped || s == StatusTimedOut || s == ""
}

// CanStop reports whether Stop is a valid transition from s.
func (s ContainerStatus) CanStop() bool {
	return s == StatusRunning || s == StatusTimedOut
}

// QuestionType is the kind of question. The wire values are the backend's.
type QuestionType string

const (
	QuestionOpen           QuestionType = "abierta"
	QuestionMultipleChoice QuestionType = "multiple_choice"
)

// Question belongs to an exercise. Choices holds a JSON-encoded []Choice
// and is only meaningful for multiple-choice questions.
type Question struct {
	ID      int64        `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Choices string       `json:"choices"`
	Score   float64      `json:"score"`
}

// QuestionDraft is the admin input for creating or editing a question.
type QuestionDraft struct {
	Text    string
	Type    QuestionType
	Choices []Choice
	Score   float64
}

// QuestionPayload is the request body of question create and edit calls.
type QuestionPayload struct {
	Text    string       `json:"question_text"`
	Type    QuestionType `json:"question_type"`
	Choices string       `json:"choices"`
	Score   float64      `json:"score"`
}

// Answer is a student's write-once answer to a question.
type Answer struct {
	QuestionID int64    `json:"question_id,omitempty"`
	AnswerText string   `json:"answer_text"`
	Score      *float64 `json:"score,omitempty"`
	Feedback   string   `json:"feedback,omitempty"`
}

// UnmarshalJSON accepts both the object form and the bare answer text
// returned by older backends.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*a = Answer{AnswerText: text}
		return nil
	}
	type plain Answer
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Answer(p)
	return nil
}

// GroupAnswer is the joint answer of a group to a question.
type GroupAnswer struct {
	QuestionID int64    `json:"question_id,omitempty"`
	AnswerText string   `json:"answer_text"`
	Score      *float64 `json:"score,omitempty"`
}

// Group is a two-person pairing for one exercise.
type Group struct {
	ID      int64  `json:"group_id"`
	Leader  User   `json:"leader"`
	Partner User   `json:"partner"`
	Message string `json:"message,omitempty"`
}

// IndividualAnswerRow is one row of the admin grading sheet.
type IndividualAnswerRow struct {
	AnswerID     int64    `json:"answer_id"`
	QuestionID   int64    `json:"question_id"`
	QuestionText string   `json:"question_text"`
	AnswerText   string   `json:"answer_text"`
	Score        *float64 `json:"score"`
	Feedback     string   `json:"feedback"`
	User         User     `json:"user"`
}

// GroupAnswerRow is one group answer in the admin grading sheet.
type GroupAnswerRow struct {
	AnswerID     int64    `json:"answer_id"`
	QuestionID   int64    `json:"question_id"`
	QuestionText string   `json:"question_text"`
	AnswerText   string   `json:"answer_text"`
	Score        *float64 `json:"score"`
	GroupID      int64    `json:"group_id"`
	Leader       User     `json:"leader"`
	Partner      User     `json:"partner"`
}

// GradingSheet is everything the grading panel shows for one exercise.
type GradingSheet struct {
	Individual []IndividualAnswerRow `json:"individual_answers"`
	Group      []GroupAnswerRow      `json:"group_answers"`
}

// BulkUser is one queued account for admin bulk creation.
type BulkUser struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required,notblank"`
	LastName  string `json:"last_name" validate:"required,notblank"`
}

// CreatedUser is returned once by bulk creation with its temporary password.
type CreatedUser struct {
	Email        string `json:"email"`
	TempPassword string `json:"temp_password"`
}

// ConsoleConfig holds runtime web console parameters set via CLI flags.
type ConsoleConfig struct {
	APIURL        string // backend base URL, used to build proxy links
	BasePath      string // URL prefix for sub-path deployments
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	Lang          string // default UI language

	BootDelay    time.Duration
	ReadyTimeout time.Duration
	PollInterval time.Duration
}

type sessionCtxKey struct{}

// ContextWithSession stores the session in the request context.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFromContext retrieves the authenticated session from context, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*Session)
	return s
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
