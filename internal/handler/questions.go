package handler

import (
	"net/http"
	"strconv"

	"github.com/labcentral/labcentral/internal/grading"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/questions"
)

// parseDraft reads the question form. Choice i is correct when a "correct"
// value equals i.
func parseDraft(r *http.Request) (model.QuestionDraft, error) {
	if err := r.ParseForm(); err != nil {
		return model.QuestionDraft{}, err
	}
	d := model.QuestionDraft{
		Text: r.FormValue("text"),
		Type: model.QuestionType(r.FormValue("type")),
	}
	score, err := grading.ParseScore(r.FormValue("score"))
	if err != nil {
		return model.QuestionDraft{}, err
	}
	if score != nil {
		d.Score = *score
	}

	correct := map[int]bool{}
	for _, v := range r.Form["correct"] {
		if i, err := strconv.Atoi(v); err == nil {
			correct[i] = true
		}
	}
	for i, text := range r.Form["choice"] {
		d.Choices = append(d.Choices, model.Choice{Text: text, Correct: correct[i]})
	}
	return d, nil
}

func (h *Handler) questionPanel(r *http.Request) (*questions.Panel, int64, bool) {
	id, err := idParam(r, "exerciseID")
	if err != nil {
		return nil, 0, false
	}
	sess := model.SessionFromContext(r.Context())
	return questions.NewPanel(h.clientFor(r.Context()), id, sess.User.IsAdmin), id, true
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	panel, exID, ok := h.questionPanel(r)
	qid, err := idParam(r, "questionID")
	if !ok || err != nil {
		http.Error(w, "invalid question", http.StatusBadRequest)
		return
	}
	if err := panel.Load(r.Context()); err != nil {
		h.back(w, r, exercisePath(exID), err, "")
		return
	}
	err = panel.SubmitAnswer(r.Context(), qid, r.FormValue("answer"))
	h.back(w, r, exercisePath(exID), err, "AnswerSubmitted")
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	panel, exID, ok := h.questionPanel(r)
	if !ok {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	d, err := parseDraft(r)
	if err == nil {
		_, err = panel.CreateQuestion(r.Context(), d)
	}
	h.back(w, r, exercisePath(exID), err, "QuestionCreated")
}

func (h *Handler) handleEditQuestion(w http.ResponseWriter, r *http.Request) {
	panel, exID, ok := h.questionPanel(r)
	qid, err := idParam(r, "questionID")
	if !ok || err != nil {
		http.Error(w, "invalid question", http.StatusBadRequest)
		return
	}
	d, err := parseDraft(r)
	if err == nil {
		err = panel.EditQuestion(r.Context(), qid, d)
	}
	h.back(w, r, exercisePath(exID), err, "QuestionUpdated")
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	panel, exID, ok := h.questionPanel(r)
	qid, err := idParam(r, "questionID")
	if !ok || err != nil {
		http.Error(w, "invalid question", http.StatusBadRequest)
		return
	}
	err = panel.DeleteQuestion(r.Context(), qid)
	h.back(w, r, exercisePath(exID), err, "QuestionDeleted")
}
