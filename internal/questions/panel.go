// Package questions holds the question and answer state of one exercise.
package questions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/labcentral/labcentral/internal/model"
)

var (
	ErrBlankAnswer     = errors.New("answer is blank")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrAdminOnly       = errors.New("only admins can manage questions")
	ErrBlankQuestion   = errors.New("question text is blank")
	ErrTooFewChoices   = errors.New("multiple choice questions need at least two options")
	ErrInvalidType     = errors.New("unknown question type")
	ErrNegativeScore   = errors.New("question score cannot be negative")
)

// CorrectMarker is appended to correct option labels shown to admins.
const CorrectMarker = " (Correcta)"

const minChoices = 2

// Client is the subset of the API client the panel uses.
type Client interface {
	ListQuestions(ctx context.Context, exerciseID int64) ([]model.Question, error)
	MyAnswers(ctx context.Context, exerciseID int64) (map[int64]model.Answer, error)
	MyGroupScores(ctx context.Context, exerciseID int64) (map[int64]model.GroupAnswer, error)
	SubmitAnswer(ctx context.Context, exerciseID, questionID int64, text string) error
	CreateQuestion(ctx context.Context, exerciseID int64, p model.QuestionPayload) (int64, error)
	UpdateQuestion(ctx context.Context, exerciseID, questionID int64, p model.QuestionPayload) error
	DeleteQuestion(ctx context.Context, exerciseID, questionID int64) error
}

// Panel is the question list of one exercise as seen by one user. It is not
// safe for concurrent use.
type Panel struct {
	client     Client
	exerciseID int64
	isAdmin    bool

	questions    []model.Question
	answers      map[int64]model.Answer
	groupAnswers map[int64]model.GroupAnswer
}

// NewPanel creates an empty panel for exerciseID.
func NewPanel(client Client, exerciseID int64, isAdmin bool) *Panel {
	return &Panel{
		client:       client,
		exerciseID:   exerciseID,
		isAdmin:      isAdmin,
		answers:      map[int64]model.Answer{},
		groupAnswers: map[int64]model.GroupAnswer{},
	}
}

// ExerciseID returns the exercise the panel belongs to.
func (p *Panel) ExerciseID() int64 { return p.exerciseID }

// LoadQuestions replaces the local question list.
func (p *Panel) LoadQuestions(ctx context.Context) error {
	qs, err := p.client.ListQuestions(ctx, p.exerciseID)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	p.questions = qs
	return nil
}

// LoadMyAnswers replaces the local individual answers.
func (p *Panel) LoadMyAnswers(ctx context.Context) error {
	answers, err := p.client.MyAnswers(ctx, p.exerciseID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	if answers == nil {
		answers = map[int64]model.Answer{}
	}
	p.answers = answers
	return nil
}

// LoadMyGroupAnswers replaces the local group answers.
func (p *Panel) LoadMyGroupAnswers(ctx context.Context) error {
	answers, err := p.client.MyGroupScores(ctx, p.exerciseID)
	if err != nil {
		return fmt.Errorf("load group answers: %w", err)
	}
	if answers == nil {
		answers = map[int64]model.GroupAnswer{}
	}
	p.groupAnswers = answers
	return nil
}

// Load fetches questions, answers and group answers.
func (p *Panel) Load(ctx context.Context) error {
	if err := p.LoadQuestions(ctx); err != nil {
		return err
	}
	if err := p.LoadMyAnswers(ctx); err != nil {
		return err
	}
	return p.LoadMyGroupAnswers(ctx)
}

// Questions returns the loaded questions.
func (p *Panel) Questions() []model.Question {
	return p.questions
}

// Question returns one loaded question.
func (p *Panel) Question(id int64) (model.Question, bool) {
	for _, q := range p.questions {
		if q.ID == id {
			return q, true
		}
	}
	return model.Question{}, false
}

// TotalScore is the sum of the maximum scores of the loaded questions.
func (p *Panel) TotalScore() float64 {
	var total float64
	for _, q := range p.questions {
		total += q.Score
	}
	return total
}

// EarnedScore is the sum of graded scores across individual and group answers.
func (p *Panel) EarnedScore() float64 {
	var total float64
	for _, q := range p.questions {
		if a, ok := p.answers[q.ID]; ok && a.Score != nil {
			total += *a.Score
		} else if g, ok := p.groupAnswers[q.ID]; ok && g.Score != nil {
			total += *g.Score
		}
	}
	return total
}

// IsAnswered reports whether the user or their group answered the question.
func (p *Panel) IsAnswered(questionID int64) bool {
	_, ok := p.Answer(questionID)
	return ok
}

// Answer returns the user's answer, or the group's when the user has none.
func (p *Panel) Answer(questionID int64) (model.Answer, bool) {
	if a, ok := p.answers[questionID]; ok {
		return a, true
	}
	if g, ok := p.groupAnswers[questionID]; ok {
		return model.Answer{QuestionID: questionID, AnswerText: g.AnswerText, Score: g.Score}, true
	}
	return model.Answer{}, false
}

// OwnAnswer returns the user's individual answer only.
func (p *Panel) OwnAnswer(questionID int64) (model.Answer, bool) {
	a, ok := p.answers[questionID]
	return a, ok
}

// GroupAnswer returns the group's answer to a question.
func (p *Panel) GroupAnswer(questionID int64) (model.GroupAnswer, bool) {
	g, ok := p.groupAnswers[questionID]
	return g, ok
}

// SubmitAnswer sends an answer once. On success it is recorded locally as
// sent, without refetching the graded form.
func (p *Panel) SubmitAnswer(ctx context.Context, questionID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankAnswer
	}
	if p.IsAnswered(questionID) {
		return ErrAlreadyAnswered
	}
	if err := p.client.SubmitAnswer(ctx, p.exerciseID, questionID, text); err != nil {
		return fmt.Errorf("submit answer: %w", err)
	}
	p.answers[questionID] = model.Answer{QuestionID: questionID, AnswerText: text}
	slog.Info("answer submitted", "exercise_id", p.exerciseID, "question_id", questionID)
	return nil
}

// CreateQuestion adds a question and reloads the list. A failed reload is
// logged and leaves the previous list; the question was still created.
func (p *Panel) CreateQuestion(ctx context.Context, d model.QuestionDraft) (int64, error) {
	payload, err := p.payload(d)
	if err != nil {
		return 0, err
	}
	id, err := p.client.CreateQuestion(ctx, p.exerciseID, payload)
	if err != nil {
		return 0, fmt.Errorf("create question: %w", err)
	}
	slog.Info("question created", "exercise_id", p.exerciseID, "question_id", id)
	p.reloadQuestions(ctx)
	return id, nil
}

// EditQuestion replaces a question and reloads the list like CreateQuestion.
func (p *Panel) EditQuestion(ctx context.Context, questionID int64, d model.QuestionDraft) error {
	payload, err := p.payload(d)
	if err != nil {
		return err
	}
	if err := p.client.UpdateQuestion(ctx, p.exerciseID, questionID, payload); err != nil {
		return fmt.Errorf("edit question %d: %w", questionID, err)
	}
	slog.Info("question edited", "exercise_id", p.exerciseID, "question_id", questionID)
	p.reloadQuestions(ctx)
	return nil
}

func (p *Panel) reloadQuestions(ctx context.Context) {
	if err := p.LoadQuestions(ctx); err != nil {
		slog.Warn("failed to reload questions", "exercise_id", p.exerciseID, "error", err)
	}
}

// DeleteQuestion removes a question.
func (p *Panel) DeleteQuestion(ctx context.Context, questionID int64) error {
	if !p.isAdmin {
		return ErrAdminOnly
	}
	if err := p.client.DeleteQuestion(ctx, p.exerciseID, questionID); err != nil {
		return fmt.Errorf("delete question %d: %w", questionID, err)
	}
	p.questions = slices.DeleteFunc(slices.Clone(p.questions), func(q model.Question) bool { return q.ID == questionID })
	delete(p.answers, questionID)
	delete(p.groupAnswers, questionID)
	slog.Info("question deleted", "exercise_id", p.exerciseID, "question_id", questionID)
	return nil
}

// payload checks a draft and builds the request body.
func (p *Panel) payload(d model.QuestionDraft) (model.QuestionPayload, error) {
	if !p.isAdmin {
		return model.QuestionPayload{}, ErrAdminOnly
	}
	text := strings.TrimSpace(d.Text)
	if text == "" {
		return model.QuestionPayload{}, ErrBlankQuestion
	}
	if d.Score < 0 {
		return model.QuestionPayload{}, ErrNegativeScore
	}
	out := model.QuestionPayload{Text: text, Type: d.Type, Score: d.Score}

	switch d.Type {
	case model.QuestionOpen:
		return out, nil
	case model.QuestionMultipleChoice:
		var choices []model.Choice
		for _, c := range d.Choices {
			c.Text = strings.TrimSpace(c.Text)
			if c.Text == "" {
				continue
			}
			c.ID = len(choices) + 1
			choices = append(choices, c)
		}
		if len(choices) < minChoices {
			return model.QuestionPayload{}, ErrTooFewChoices
		}
		encoded, err := model.EncodeChoices(choices)
		if err != nil {
			return model.QuestionPayload{}, fmt.Errorf("encode choices: %w", err)
		}
		out.Choices = encoded
		return out, nil
	default:
		return model.QuestionPayload{}, ErrInvalidType
	}
}
