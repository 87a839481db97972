package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/labcentral/labcentral/internal/exercises"
	"github.com/labcentral/labcentral/internal/handler/views"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/questions"
)

// returnTo is the page that posted, without the base path, or fallback.
func (h *Handler) returnTo(r *http.Request, fallback string) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Host != r.Host || ref.Path == "" {
		return fallback
	}
	p := strings.TrimPrefix(ref.Path, h.config.BasePath)
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return fallback
	}
	return p
}

func (h *Handler) card(c *console, ex model.Exercise) views.ExerciseCard {
	return views.ExerciseCard{
		Exercise: ex,
		Status:   c.ctrl.Status(ex.ID),
		ProxyURL: c.ctrl.ProxyURL(ex.ID),
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	c := h.console(sess)
	d := exercises.NewDashboard(h.clientFor(r.Context()), sess.User.IsAdmin)
	if err := d.Load(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}

	chrome := h.chrome(w, r)
	var cards []views.ExerciseCard
	for _, ex := range d.Exercises() {
		if _, err := c.ctrl.Refresh(r.Context(), ex.ID); err != nil {
			slog.Warn("failed to refresh status", "exercise_id", ex.ID, "error", err)
		}
		if err := c.takeStartError(ex.ID); err != nil && chrome.Flash.Message == "" {
			chrome = h.withError(w, r, err)
		}
		cards = append(cards, h.card(c, ex))
	}
	render(w, r, http.StatusOK, views.DashboardPage(chrome, cards, humanize.Bytes(exercises.MaxArchiveBytes)))
}

func (h *Handler) handleExercisePage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "exerciseID")
	if err != nil {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	sess := model.SessionFromContext(r.Context())
	c := h.console(sess)
	client := h.clientFor(r.Context())

	ex, err := exercises.NewDashboard(client, sess.User.IsAdmin).Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := c.ctrl.Refresh(r.Context(), id); err != nil {
		slog.Warn("failed to refresh status", "exercise_id", id, "error", err)
	}

	panel := questions.NewPanel(client, id, sess.User.IsAdmin)
	if sess.User.IsAdmin {
		err = panel.LoadQuestions(r.Context())
	} else {
		err = panel.Load(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := views.ExerciseData{
		Card:        h.card(c, *ex),
		TotalScore:  panel.TotalScore(),
		EarnedScore: panel.EarnedScore(),
	}
	for _, q := range panel.Questions() {
		qv := views.QuestionView{Question: q}
		if q.Type == model.QuestionMultipleChoice {
			qv.Options, qv.Notice = questions.RenderChoices(q, sess.User.IsAdmin)
		}
		if a, ok := panel.Answer(q.ID); ok {
			qv.Answer = &a
			_, own := panel.OwnAnswer(q.ID)
			qv.ByGroup = !own
		}
		data.Questions = append(data.Questions, qv)
	}

	chrome := h.chrome(w, r)
	if err := c.takeStartError(id); err != nil && chrome.Flash.Message == "" {
		chrome = h.withError(w, r, err)
	}
	render(w, r, http.StatusOK, views.ExercisePage(chrome, data))
}

// handleStatusFragment serves the status panel polled while a transition is
// in flight. A failed start reloads the whole page to show its alert.
func (h *Handler) handleStatusFragment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "exerciseID")
	if err != nil {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	c := h.console(model.SessionFromContext(r.Context()))
	c.mu.Lock()
	_, failed := c.startErrs[id]
	c.mu.Unlock()
	if failed {
		w.Header().Set("HX-Refresh", "true")
	}
	render(w, r, http.StatusOK, views.StatusPanel(h.card(c, model.Exercise{ID: id})))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "exerciseID")
	if err != nil {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	c := h.console(model.SessionFromContext(r.Context()))
	err = h.startInBackground(c, id)
	h.back(w, r, h.returnTo(r, exercisePath(id)), err, "")
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "exerciseID")
	if err != nil {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	c := h.console(model.SessionFromContext(r.Context()))
	err = c.ctrl.Stop(r.Context(), id)
	if h.metrics != nil {
		h.metrics.ObserveTransition("stop", err)
	}
	h.back(w, r, h.returnTo(r, exercisePath(id)), err, "ExerciseStopped")
}

func (h *Handler) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	file, header, err := r.FormFile("zipfile")
	if err != nil {
		h.back(w, r, "/", exercises.ErrNotZip, "")
		return
	}
	defer file.Close()

	d := exercises.NewDashboard(h.clientFor(r.Context()), sess.User.IsAdmin)
	err = d.Create(r.Context(), r.FormValue("title"), r.FormValue("description"), header.Filename, file)
	h.back(w, r, "/", err, "ExerciseCreated")
}

func (h *Handler) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "exerciseID")
	if err != nil {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	sess := model.SessionFromContext(r.Context())
	err = exercises.NewDashboard(h.clientFor(r.Context()), sess.User.IsAdmin).Delete(r.Context(), id)
	h.back(w, r, "/", err, "ExerciseDeleted")
}
