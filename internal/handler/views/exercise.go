package views

import (
	"strings"

	"github.com/a-h/templ"

	appI18n "github.com/labcentral/labcentral/internal/i18n"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/questions"
)

// QuestionView is one question as rendered for the current user.
type QuestionView struct {
	Question model.Question
	Options  []questions.Option
	Notice   string // message ID shown instead of options
	Answer   *model.Answer
	ByGroup  bool // the shown answer is the group's
}

// ExerciseData is everything the exercise page shows.
type ExerciseData struct {
	Card        ExerciseCard
	Questions   []QuestionView
	TotalScore  float64
	EarnedScore float64
	HasGroup    bool
}

// ExercisePage shows one exercise with its questions.
func ExercisePage(c Chrome, d ExerciseData) templ.Component {
	return component(func(h *htmlWriter) {
		h.render(Layout(c, d.Card.Exercise.Title, component(func(h *htmlWriter) {
			isAdmin := c.Session != nil && c.Session.User.IsAdmin
			ex := d.Card.Exercise
			base := "/exercises/" + itoa(ex.ID)

			h.f(`<p><a href="%s">← %s</a></p>`, h.path("/"), h.tr("BackToExercises"))
			h.f(`<div class="card"><h1>%s</h1>`, ex.Title)
			if ex.Description != "" {
				h.f(`<p>%s</p>`, ex.Description)
			}
			h.render(StatusPanel(d.Card))
			h.f(`<p><a href="%s">%s</a>`, h.path(base+"/group"), h.tr("GroupLink"))
			if isAdmin {
				h.f(` · <a href="%s">%s</a>`, h.path("/admin"+base+"/grading"), h.tr("GradingLink"))
			}
			h.raw(`</p></div>`)

			h.f(`<h2>%s</h2>`, h.tr("QuestionsTitle"))
			h.f(`<p>%s · %s: <strong>%s</strong>`, appI18n.Tp(h.ctx, "QuestionsCount", len(d.Questions)), h.tr("TotalScore"), formatScore(d.TotalScore))
			if !isAdmin {
				h.f(` · %s: <strong>%s</strong>`, h.tr("EarnedScore"), formatScore(d.EarnedScore))
			}
			h.raw(`</p>`)
			if len(d.Questions) == 0 {
				h.f(`<p class="muted">%s</p>`, h.tr("NoQuestions"))
			}
			for i, q := range d.Questions {
				h.render(questionCard(ex.ID, i+1, q, isAdmin))
			}
			if isAdmin {
				h.f(`<div class="card"><h3>%s</h3>`, h.tr("CreateQuestionTitle"))
				h.render(questionForm(h.path(base+"/questions"), model.Question{Type: model.QuestionOpen, Score: 1}, nil, h.tr("CreateQuestionSubmit")))
				h.raw(`</div>`)
			}
		})))
	})
}

func questionCard(exerciseID int64, n int, q QuestionView, isAdmin bool) templ.Component {
	return component(func(h *htmlWriter) {
		qpath := "/exercises/" + itoa(exerciseID) + "/questions/" + itoa(q.Question.ID)
		h.f(`<div class="card" id="question-%s">`, itoa(q.Question.ID))
		h.f(`<h3>%d. %s</h3><p class="muted">%s · %s: %s</p>`,
			n, q.Question.Text, h.tr("QuestionType_"+string(q.Question.Type)), h.tr("MaxScore"), formatScore(q.Question.Score))

		answered := q.Answer != nil
		if q.Question.Type == model.QuestionMultipleChoice {
			if q.Notice != "" {
				h.f(`<p class="muted">%s</p>`, h.tr(q.Notice))
			}
		}

		switch {
		case answered:
			h.f(`<p><strong>%s:</strong> %s</p>`, h.tr("YourAnswer"), q.Answer.AnswerText)
			if q.ByGroup {
				h.f(`<p class="muted">%s</p>`, h.tr("AnsweredByGroup"))
			}
			if q.Answer.Score != nil {
				h.f(`<p>%s: <strong>%s / %s</strong></p>`, h.tr("Score"), formatScorePtr(q.Answer.Score), formatScore(q.Question.Score))
			} else {
				h.f(`<p class="muted">%s</p>`, h.tr("NotGradedYet"))
			}
			if q.Answer.Feedback != "" {
				h.f(`<p><strong>%s:</strong> %s</p>`, h.tr("Feedback"), q.Answer.Feedback)
			}
		case !isAdmin:
			h.f(`<form method="post" action="%s">`, h.path(qpath+"/answer"))
			h.csrf()
			if q.Question.Type == model.QuestionMultipleChoice {
				for _, o := range q.Options {
					h.f(`<p><label><input type="radio" name="answer" value="%s" required> %s</label></p>`, o.Label, o.Label)
				}
			} else {
				h.raw(`<p><textarea name="answer" rows="4" cols="60" required></textarea></p>`)
			}
			if q.Question.Type != model.QuestionMultipleChoice || len(q.Options) > 0 {
				h.f(`<button type="submit">%s</button>`, h.tr("SubmitAnswer"))
			}
			h.raw(`</form>`)
		}

		if isAdmin {
			if q.Question.Type == model.QuestionMultipleChoice {
				h.raw(`<ul>`)
				for _, o := range q.Options {
					h.f(`<li>%s</li>`, o.Label)
				}
				h.raw(`</ul>`)
			}
			h.f(`<details><summary>%s</summary>`, h.tr("EditQuestion"))
			h.render(questionForm(h.path(qpath), q.Question, q.Options, h.tr("EditQuestionSubmit")))
			h.raw(`</details>`)
			h.f(`<form method="post" action="%s" class="inline" onsubmit="return confirm('%s')">`, h.path(qpath+"/delete"), h.tr("DeleteQuestionConfirm"))
			h.csrf()
			h.f(`<button type="submit">%s</button></form>`, h.tr("DeleteQuestion"))
		}
		h.raw(`</div>`)
	})
}

const choiceSlots = 6

// questionForm edits text, type, score and up to choiceSlots options. Option
// i is marked correct by a "correct" value of i.
func questionForm(action templ.SafeURL, q model.Question, opts []questions.Option, submit string) templ.Component {
	return component(func(h *htmlWriter) {
		h.f(`<form method="post" action="%s">`, action)
		h.csrf()
		h.f(`<p><label>%s<br><textarea name="text" rows="3" cols="60" required>%s</textarea></label></p>`, h.tr("FieldQuestionText"), q.Text)
		h.f(`<p><label>%s <select name="type">`, h.tr("FieldQuestionType"))
		for _, t := range []model.QuestionType{model.QuestionOpen, model.QuestionMultipleChoice} {
			sel := ""
			if t == q.Type {
				sel = " selected"
			}
			h.f(`<option value="%s"%s>%s</option>`, string(t), trusted(sel), h.tr("QuestionType_"+string(t)))
		}
		h.raw(`</select></label> `)
		h.f(`<label>%s <input type="text" name="score" value="%s" size="5"></label></p>`, h.tr("FieldScore"), formatScore(q.Score))
		h.f(`<fieldset><legend>%s</legend>`, h.tr("FieldChoices"))
		for i := 0; i < choiceSlots; i++ {
			var text string
			checked := ""
			if i < len(opts) {
				text = opts[i].Label
				if opts[i].Correct {
					text = strings.TrimSuffix(text, questions.CorrectMarker)
					checked = " checked"
				}
			}
			h.f(`<p><input type="text" name="choice" value="%s"> <label><input type="checkbox" name="correct" value="%d"%s> %s</label></p>`,
				text, i, trusted(checked), h.tr("CorrectChoice"))
		}
		h.f(`</fieldset><button type="submit">%s</button></form>`, submit)
	})
}
