// Package grading is the admin view of every answer to an exercise.
package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/llm"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/questions"
)

var (
	ErrInvalidScore  = errors.New("score must be a non-negative number")
	ErrUnknownAnswer = errors.New("answer not found")
	ErrNoAssistant   = errors.New("grading assistant is not configured")
)

// Client is the subset of the API client the panel uses.
type Client interface {
	AdminAnswers(ctx context.Context, exerciseID int64) (*model.GradingSheet, error)
	PatchAnswer(ctx context.Context, mode api.GradeMode, answerID int64, patch api.ScorePatch) error
	GetExercise(ctx context.Context, id int64) (*model.Exercise, error)
	ListQuestions(ctx context.Context, exerciseID int64) ([]model.Question, error)
}

// Assistant proposes grades. *llm.Client implements it.
type Assistant interface {
	SuggestGrade(ctx context.Context, req llm.Request) (*llm.Suggestion, error)
}

// Panel holds the grading sheet of one exercise.
type Panel struct {
	client     Client
	assistant  Assistant
	exerciseID int64
	sheet      model.GradingSheet
}

// NewPanel creates a panel. assistant may be nil.
func NewPanel(client Client, assistant Assistant, exerciseID int64) *Panel {
	return &Panel{client: client, assistant: assistant, exerciseID: exerciseID}
}

// Load replaces the local sheet with the backend's.
func (p *Panel) Load(ctx context.Context) error {
	sheet, err := p.client.AdminAnswers(ctx, p.exerciseID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	p.sheet = *sheet
	return nil
}

// Individual returns the loaded individual answers.
func (p *Panel) Individual() []model.IndividualAnswerRow { return p.sheet.Individual }

// Group returns the loaded group answers.
func (p *Panel) Group() []model.GroupAnswerRow { return p.sheet.Group }

// HasAssistant reports whether Suggest can be used.
func (p *Panel) HasAssistant() bool { return p.assistant != nil }

// ParseScore reads a score input. An empty input means ungraded and yields nil.
// A decimal comma is accepted.
func ParseScore(input string) (*float64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(input, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScore, input)
	}
	return &v, nil
}

// SaveIndividualScore grades one individual answer and reloads the sheet.
func (p *Panel) SaveIndividualScore(ctx context.Context, answerID int64, scoreInput, feedback string) error {
	score, err := ParseScore(scoreInput)
	if err != nil {
		return err
	}
	patch := api.ScorePatch{Score: score, Feedback: &feedback}
	if err := p.client.PatchAnswer(ctx, api.ModeIndividual, answerID, patch); err != nil {
		return fmt.Errorf("save score for answer %d: %w", answerID, err)
	}
	slog.Info("answer graded", "mode", api.ModeIndividual, "answer_id", answerID, "graded", score != nil)
	p.reload(ctx)
	return nil
}

// SaveGroupScore grades one group answer and reloads the sheet.
func (p *Panel) SaveGroupScore(ctx context.Context, answerID int64, scoreInput string) error {
	score, err := ParseScore(scoreInput)
	if err != nil {
		return err
	}
	if err := p.client.PatchAnswer(ctx, api.ModeGroup, answerID, api.ScorePatch{Score: score}); err != nil {
		return fmt.Errorf("save score for group answer %d: %w", answerID, err)
	}
	slog.Info("answer graded", "mode", api.ModeGroup, "answer_id", answerID, "graded", score != nil)
	p.reload(ctx)
	return nil
}

// reload refreshes the sheet after a save. The save already went through, so
// a failure only leaves the previous sheet.
func (p *Panel) reload(ctx context.Context) {
	if err := p.Load(ctx); err != nil {
		slog.Warn("failed to reload answers", "exercise_id", p.exerciseID, "error", err)
	}
}

// Export builds a summary of the loaded sheet with per-student totals.
func (p *Panel) Export(ctx context.Context) (*model.GradingExport, error) {
	ex, err := p.client.GetExercise(ctx, p.exerciseID)
	if err != nil {
		return nil, fmt.Errorf("get exercise: %w", err)
	}
	qs, err := p.client.ListQuestions(ctx, p.exerciseID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	out := &model.GradingExport{
		ExerciseID: p.exerciseID,
		Title:      ex.Title,
		ExportedAt: time.Now().UTC(),
		Answers:    p.sheet.Individual,
		Groups:     p.sheet.Group,
	}
	for _, q := range qs {
		out.MaxScore += q.Score
	}

	byEmail := map[string]*model.StudentResult{}
	for _, row := range p.sheet.Individual {
		r := byEmail[row.User.Email]
		if r == nil {
			r = &model.StudentResult{Email: row.User.Email}
			byEmail[row.User.Email] = r
		}
		r.Answered++
		if row.Score != nil {
			r.Graded++
			r.Score += *row.Score
		} else {
			out.Ungraded++
		}
	}
	for _, row := range p.sheet.Group {
		if row.Score == nil {
			out.Ungraded++
		}
	}
	for _, r := range byEmail {
		out.Students = append(out.Students, *r)
	}
	sort.Slice(out.Students, func(i, j int) bool { return out.Students[i].Email < out.Students[j].Email })
	return out, nil
}

// Suggest asks the assistant for a grade of one loaded answer. Nothing is saved.
func (p *Panel) Suggest(ctx context.Context, mode api.GradeMode, answerID int64) (*llm.Suggestion, error) {
	if p.assistant == nil {
		return nil, ErrNoAssistant
	}
	questionID, text, ok := p.find(mode, answerID)
	if !ok {
		return nil, ErrUnknownAnswer
	}

	qs, err := p.client.ListQuestions(ctx, p.exerciseID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	var q model.Question
	for _, cand := range qs {
		if cand.ID == questionID {
			q = cand
		}
	}
	if q.ID == 0 {
		return nil, ErrUnknownAnswer
	}

	req := llm.Request{
		QuestionText: q.Text,
		QuestionType: string(q.Type),
		MaxScore:     q.Score,
		Answer:       text,
	}
	if q.Type == model.QuestionMultipleChoice {
		opts, _ := questions.RenderChoices(q, true)
		for _, o := range opts {
			req.Options = append(req.Options, o.Label)
		}
	}
	s, err := p.assistant.SuggestGrade(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("suggest grade for answer %d: %w", answerID, err)
	}
	return s, nil
}

func (p *Panel) find(mode api.GradeMode, answerID int64) (questionID int64, text string, ok bool) {
	switch mode {
	case api.ModeIndividual:
		for _, row := range p.sheet.Individual {
			if row.AnswerID == answerID {
				return row.QuestionID, row.AnswerText, true
			}
		}
	case api.ModeGroup:
		for _, row := range p.sheet.Group {
			if row.AnswerID == answerID {
				return row.QuestionID, row.AnswerText, true
			}
		}
	}
	return 0, "", false
}
