package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/api/apitest"
	"github.com/labcentral/labcentral/internal/model"
)

type fixture struct {
	backend    *apitest.Backend
	exerciseID int64
	student    *Panel
	admin      *Panel
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "Ana", "Diaz", false)
	b.AddUser("admin@example.com", "secret", "Ada", "Admin", true)
	ex := b.AddExercise("Redes", "")
	student := api.New(srv.URL).WithToken(b.Token("ana@example.com"))
	admin := api.New(srv.URL).WithToken(b.Token("admin@example.com"))
	return fixture{
		backend:    b,
		exerciseID: ex,
		student:    NewPanel(student, ex, false),
		admin:      NewPanel(admin, ex, true),
	}
}

func answerPath(ex, q int64) string {
	return fmt.Sprintf("/api/exercise/%d/question/%d/answer", ex, q)
}

func TestTotalScore(t *testing.T) {
	f := newFixture(t)
	f.backend.AddQuestion(f.exerciseID, model.Question{Text: "a", Type: model.QuestionOpen, Score: 2})
	f.backend.AddQuestion(f.exerciseID, model.Question{Text: "b", Type: model.QuestionOpen, Score: 3.5})

	if got := f.student.TotalScore(); got != 0 {
		t.Errorf("TotalScore before load = %v, want 0", got)
	}
	if err := f.student.LoadQuestions(context.Background()); err != nil {
		t.Fatalf("LoadQuestions: %v", err)
	}
	if got := f.student.TotalScore(); got != 5.5 {
		t.Errorf("TotalScore = %v, want 5.5", got)
	}
}

func TestSubmitAnswer(t *testing.T) {
	f := newFixture(t)
	qid := f.backend.AddQuestion(f.exerciseID, model.Question{Text: "¿Qué es DNS?", Type: model.QuestionOpen, Score: 1})
	ctx := context.Background()
	if err := f.student.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := f.student.SubmitAnswer(ctx, qid, "   "); !errors.Is(err, ErrBlankAnswer) {
		t.Fatalf("blank answer = %v, want ErrBlankAnswer", err)
	}
	if n := f.backend.Count(http.MethodPost, answerPath(f.exerciseID, qid)); n != 0 {
		t.Fatalf("blank answer made %d requests", n)
	}

	if err := f.student.SubmitAnswer(ctx, qid, "Resolución de nombres"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	a, ok := f.student.Answer(qid)
	if !ok || a.AnswerText != "Resolución de nombres" || a.Score != nil {
		t.Errorf("answer = %+v, %v", a, ok)
	}

	if err := f.student.SubmitAnswer(ctx, qid, "otra"); !errors.Is(err, ErrAlreadyAnswered) {
		t.Errorf("second answer = %v, want ErrAlreadyAnswered", err)
	}
	if n := f.backend.Count(http.MethodPost, answerPath(f.exerciseID, qid)); n != 1 {
		t.Errorf("answer requests = %d, want 1", n)
	}
}

func TestSubmitAnswerFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Question 999 does not exist, so the backend rejects the answer.
	err := f.student.SubmitAnswer(ctx, 999, "respuesta")
	if err == nil {
		t.Fatal("expected error")
	}
	if msg, ok := api.ServerMessage(err); !ok || msg != "Question not found" {
		t.Errorf("ServerMessage = %q, %v", msg, ok)
	}
	if f.student.IsAnswered(999) {
		t.Error("failed answer recorded locally")
	}
}

func TestGroupAnswerMakesQuestionAnswered(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser("beto@example.com", "secret", "Beto", "Ruiz", false)
	qid := f.backend.AddQuestion(f.exerciseID, model.Question{Text: "q", Type: model.QuestionOpen, Score: 1})
	g := f.backend.AddGroup(f.exerciseID, "ana@example.com", "beto@example.com")
	f.backend.AddGroupAnswer(g, qid, "respuesta conjunta")

	ctx := context.Background()
	if err := f.student.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !f.student.IsAnswered(qid) {
		t.Fatal("expected question answered by the group")
	}
	if err := f.student.SubmitAnswer(ctx, qid, "mía"); !errors.Is(err, ErrAlreadyAnswered) {
		t.Errorf("SubmitAnswer = %v, want ErrAlreadyAnswered", err)
	}
}

func TestCreateQuestionValidation(t *testing.T) {
	two := []model.Choice{{Text: "TCP"}, {Text: "UDP", Correct: true}}
	tests := []struct {
		name    string
		admin   bool
		draft   model.QuestionDraft
		wantErr error
	}{
		{"not admin", false, model.QuestionDraft{Text: "q", Type: model.QuestionOpen}, ErrAdminOnly},
		{"blank text", true, model.QuestionDraft{Text: "  ", Type: model.QuestionOpen}, ErrBlankQuestion},
		{"one choice", true, model.QuestionDraft{Text: "q", Type: model.QuestionMultipleChoice, Choices: two[:1]}, ErrTooFewChoices},
		{"blank choices ignored", true, model.QuestionDraft{Text: "q", Type: model.QuestionMultipleChoice, Choices: []model.Choice{{Text: "a"}, {Text: " "}}}, ErrTooFewChoices},
		{"unknown type", true, model.QuestionDraft{Text: "q", Type: "essay"}, ErrInvalidType},
		{"negative score", true, model.QuestionDraft{Text: "q", Type: model.QuestionOpen, Score: -1}, ErrNegativeScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.student
			if tt.admin {
				p = f.admin
			}
			_, err := p.CreateQuestion(context.Background(), tt.draft)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateQuestion = %v, want %v", err, tt.wantErr)
			}
			path := fmt.Sprintf("/api/exercise/%d/questions", f.exerciseID)
			if n := f.backend.Count(http.MethodPost, path); n != 0 {
				t.Errorf("rejected draft made %d requests", n)
			}
		})
	}
}

func TestCreateMultipleChoiceQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := model.QuestionDraft{
		Text:    "¿Qué protocolo es orientado a conexión?",
		Type:    model.QuestionMultipleChoice,
		Choices: []model.Choice{{Text: "TCP", Correct: true}, {Text: "UDP"}},
		Score:   2,
	}

	id, err := f.admin.CreateQuestion(ctx, draft)
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	body := f.backend.LastBody(http.MethodPost, fmt.Sprintf("/api/exercise/%d/questions", f.exerciseID))
	var sent map[string]any
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := `[{"id":1,"text":"TCP","correct":true},{"id":2,"text":"UDP","correct":false}]`
	if sent["choices"] != want {
		t.Errorf("choices = %v, want %s", sent["choices"], want)
	}
	if sent["question_type"] != "multiple_choice" {
		t.Errorf("question_type = %v", sent["question_type"])
	}

	q, ok := f.admin.Question(id)
	if !ok {
		t.Fatalf("question %d not reloaded", id)
	}
	opts, notice := RenderChoices(q, true)
	if notice != "" || len(opts) != 2 || opts[0].Label != "TCP (Correcta)" || opts[1].Label != "UDP" {
		t.Errorf("admin options = %+v, notice %q", opts, notice)
	}
}

func TestCreateOpenQuestionSendsEmptyChoices(t *testing.T) {
	f := newFixture(t)
	_, err := f.admin.CreateQuestion(context.Background(), model.QuestionDraft{
		Text:    "Explique NAT",
		Type:    model.QuestionOpen,
		Choices: []model.Choice{{Text: "ignored"}},
		Score:   1,
	})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	body := f.backend.LastBody(http.MethodPost, fmt.Sprintf("/api/exercise/%d/questions", f.exerciseID))
	var sent map[string]any
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if sent["choices"] != "" {
		t.Errorf("choices = %v, want empty string", sent["choices"])
	}
}

func TestEditAndDeleteQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	qid := f.backend.AddQuestion(f.exerciseID, model.Question{Text: "vieja", Type: model.QuestionOpen, Score: 1})
	if err := f.admin.LoadQuestions(ctx); err != nil {
		t.Fatalf("LoadQuestions: %v", err)
	}

	err := f.admin.EditQuestion(ctx, qid, model.QuestionDraft{Text: "nueva", Type: model.QuestionOpen, Score: 4})
	if err != nil {
		t.Fatalf("EditQuestion: %v", err)
	}
	if q, _ := f.backend.Question(qid); q.Text != "nueva" || q.Score != 4 {
		t.Errorf("stored question = %+v", q)
	}
	if got := f.admin.TotalScore(); got != 4 {
		t.Errorf("TotalScore = %v, want 4", got)
	}

	if err := f.student.DeleteQuestion(ctx, qid); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("student delete = %v, want ErrAdminOnly", err)
	}
	before := f.admin.Questions()
	if err := f.admin.DeleteQuestion(ctx, qid); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if len(before) != 1 || before[0].ID != qid {
		t.Errorf("earlier list changed by DeleteQuestion: %+v", before)
	}
	if len(f.admin.Questions()) != 0 {
		t.Errorf("questions = %+v, want none", f.admin.Questions())
	}
}

func TestDeleteQuestionKeepsOtherOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []int64
	for _, text := range []string{"uno", "dos", "tres"} {
		ids = append(ids, f.backend.AddQuestion(f.exerciseID, model.Question{Text: text, Type: model.QuestionOpen, Score: 1}))
	}
	if err := f.admin.LoadQuestions(ctx); err != nil {
		t.Fatalf("LoadQuestions: %v", err)
	}
	held := f.admin.Questions()

	if err := f.admin.DeleteQuestion(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	for i, q := range held {
		if q.ID != ids[i] {
			t.Errorf("held[%d] = %d, want %d", i, q.ID, ids[i])
		}
	}
	got := f.admin.Questions()
	if len(got) != 2 || got[0].ID != ids[1] || got[1].ID != ids[2] {
		t.Errorf("questions = %+v", got)
	}
}

func TestCreateQuestionSucceedsWhenReloadFails(t *testing.T) {
	f := newFixture(t)
	f.backend.FailGet[fmt.Sprintf("/api/exercise/%d/questions", f.exerciseID)] = "database busy"

	id, err := f.admin.CreateQuestion(context.Background(), model.QuestionDraft{Text: "Explique NAT", Type: model.QuestionOpen, Score: 1})
	if err != nil {
		t.Fatalf("CreateQuestion = %v, want nil after a successful create", err)
	}
	if _, ok := f.backend.Question(id); !ok {
		t.Errorf("question %d not on backend", id)
	}
}

func TestRenderChoices(t *testing.T) {
	tests := []struct {
		name       string
		choices    string
		admin      bool
		wantLabels []string
		wantNotice string
	}{
		{"empty", "", false, nil, NoticeNoChoices},
		{"empty array", "[]", true, nil, NoticeNoChoices},
		{"malformed", "{not json", false, nil, NoticeInvalidChoices},
		{"student hides correct", `[{"id":1,"text":"A","correct":true},{"id":2,"text":"B"}]`, false, []string{"A", "B"}, ""},
		{"admin sees correct", `[{"id":1,"text":"A","correct":true},{"id":2,"text":"B"}]`, true, []string{"A (Correcta)", "B"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := model.Question{Type: model.QuestionMultipleChoice, Choices: tt.choices}
			opts, notice := RenderChoices(q, tt.admin)
			if notice != tt.wantNotice {
				t.Errorf("notice = %q, want %q", notice, tt.wantNotice)
			}
			if len(opts) != len(tt.wantLabels) {
				t.Fatalf("got %d options, want %d", len(opts), len(tt.wantLabels))
			}
			for i, o := range opts {
				if o.Label != tt.wantLabels[i] {
					t.Errorf("option %d = %q, want %q", i, o.Label, tt.wantLabels[i])
				}
				if !tt.admin && o.Correct {
					t.Errorf("option %d reveals correctness to a student", i)
				}
			}
		})
	}
}
