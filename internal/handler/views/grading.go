package views

import (
	"github.com/a-h/templ"

	"github.com/labcentral/labcentral/internal/model"
)

// Suggestion is an assistant grade proposal shown in one row of the sheet.
type Suggestion struct {
	Mode     string
	AnswerID int64
	Score    float64
	Feedback string
}

// GradingData is the admin grading sheet of one exercise.
type GradingData struct {
	Exercise     model.Exercise
	Individual   []model.IndividualAnswerRow
	Group        []model.GroupAnswerRow
	HasAssistant bool
	Suggestion   *Suggestion
}

func (d GradingData) suggestionFor(mode string, id int64) *Suggestion {
	if d.Suggestion != nil && d.Suggestion.Mode == mode && d.Suggestion.AnswerID == id {
		return d.Suggestion
	}
	return nil
}

// GradingPage lets an admin score individual and group answers.
func GradingPage(c Chrome, d GradingData) templ.Component {
	return page(c, "GradingTitle", func(h *htmlWriter) {
		base := "/admin/exercises/" + itoa(d.Exercise.ID) + "/grading"
		h.f(`<p><a href="%s">← %s</a></p>`, h.path("/exercises/"+itoa(d.Exercise.ID)), d.Exercise.Title)
		h.f(`<h1>%s: %s</h1>`, h.tr("GradingTitle"), d.Exercise.Title)
		h.f(`<p><a href="%s">%s</a></p>`, h.path(base+"/export"), h.tr("ExportGrades"))

		h.f(`<div class="card"><h2>%s</h2>`, h.tr("IndividualAnswers"))
		if len(d.Individual) == 0 {
			h.f(`<p class="muted">%s</p>`, h.tr("NoAnswers"))
		} else {
			h.f(`<table><tr><th>%s</th><th>%s</th><th>%s</th><th>%s</th></tr>`,
				h.tr("Student"), h.tr("Question"), h.tr("Answer"), h.tr("Score"))
			for _, row := range d.Individual {
				score, feedback := formatScorePtr(row.Score), row.Feedback
				s := d.suggestionFor("individual", row.AnswerID)
				if s != nil {
					score, feedback = formatScore(s.Score), s.Feedback
				}
				h.f(`<tr><td>%s<br><span class="muted">%s</span></td><td>%s</td><td>%s</td><td>`,
					row.User.DisplayName(), row.User.Email, row.QuestionText, row.AnswerText)
				h.f(`<form method="post" action="%s">`, h.path(base+"/individual/"+itoa(row.AnswerID)))
				h.csrf()
				h.f(`<input type="text" name="score" value="%s" size="5" placeholder="%s">`, score, h.tr("Ungraded"))
				h.f(`<br><textarea name="feedback" rows="2" placeholder="%s">%s</textarea>`, h.tr("Feedback"), feedback)
				h.f(`<br><button type="submit">%s</button></form>`, h.tr("SaveScore"))
				if s != nil {
					h.f(`<p class="muted">%s</p>`, h.tr("SuggestionNotSaved"))
				}
				if d.HasAssistant {
					h.postButton(h.path(base+"/individual/"+itoa(row.AnswerID)+"/suggest"), h.tr("SuggestGrade"), "")
				}
				h.raw(`</td></tr>`)
			}
			h.raw(`</table>`)
		}
		h.raw(`</div>`)

		h.f(`<div class="card"><h2>%s</h2>`, h.tr("GroupAnswers"))
		if len(d.Group) == 0 {
			h.f(`<p class="muted">%s</p>`, h.tr("NoAnswers"))
		} else {
			h.f(`<table><tr><th>%s</th><th>%s</th><th>%s</th><th>%s</th></tr>`,
				h.tr("Group"), h.tr("Question"), h.tr("Answer"), h.tr("Score"))
			for _, row := range d.Group {
				score := formatScorePtr(row.Score)
				s := d.suggestionFor("group", row.AnswerID)
				if s != nil {
					score = formatScore(s.Score)
				}
				h.f(`<tr><td>%s<br>%s</td><td>%s</td><td>%s</td><td>`,
					row.Leader.DisplayName(), row.Partner.DisplayName(), row.QuestionText, row.AnswerText)
				h.f(`<form method="post" action="%s">`, h.path(base+"/group/"+itoa(row.AnswerID)))
				h.csrf()
				h.f(`<input type="text" name="score" value="%s" size="5" placeholder="%s">`, score, h.tr("Ungraded"))
				h.f(`<button type="submit">%s</button></form>`, h.tr("SaveScore"))
				if s != nil {
					h.f(`<p class="muted">%s<br>%s</p>`, h.tr("SuggestionNotSaved"), s.Feedback)
				}
				if d.HasAssistant {
					h.postButton(h.path(base+"/group/"+itoa(row.AnswerID)+"/suggest"), h.tr("SuggestGrade"), "")
				}
				h.raw(`</td></tr>`)
			}
			h.raw(`</table>`)
		}
		h.raw(`</div>`)
	})
}
