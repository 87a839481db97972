package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/exercises"
	"github.com/labcentral/labcentral/internal/grading"
	"github.com/labcentral/labcentral/internal/handler/views"
	"github.com/labcentral/labcentral/internal/model"
)

func (h *Handler) gradingPanel(r *http.Request) (*grading.Panel, int64, bool) {
	id, err := idParam(r, "exerciseID")
	if err != nil {
		return nil, 0, false
	}
	return grading.NewPanel(h.clientFor(r.Context()), h.assistant, id), id, true
}

func gradingPath(exerciseID int64) string {
	return "/admin/exercises/" + strconv.FormatInt(exerciseID, 10) + "/grading"
}

func modeParam(r *http.Request) (api.GradeMode, bool) {
	switch m := api.GradeMode(chi.URLParam(r, "mode")); m {
	case api.ModeIndividual, api.ModeGroup:
		return m, true
	}
	return "", false
}

func (h *Handler) handleGradingPage(w http.ResponseWriter, r *http.Request) {
	panel, id, ok := h.gradingPanel(r)
	if !ok {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	ex, err := exercises.NewDashboard(h.clientFor(r.Context()), true).Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := panel.Load(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}

	sess := model.SessionFromContext(r.Context())
	render(w, r, http.StatusOK, views.GradingPage(h.chrome(w, r), views.GradingData{
		Exercise:     *ex,
		Individual:   panel.Individual(),
		Group:        panel.Group(),
		HasAssistant: panel.HasAssistant(),
		Suggestion:   h.console(sess).takeSuggestion(),
	}))
}

func (h *Handler) handleSaveScore(w http.ResponseWriter, r *http.Request) {
	panel, id, ok := h.gradingPanel(r)
	mode, okMode := modeParam(r)
	answerID, err := idParam(r, "answerID")
	if !ok || !okMode || err != nil {
		http.Error(w, "invalid answer", http.StatusBadRequest)
		return
	}
	if mode == api.ModeIndividual {
		err = panel.SaveIndividualScore(r.Context(), answerID, r.FormValue("score"), r.FormValue("feedback"))
	} else {
		err = panel.SaveGroupScore(r.Context(), answerID, r.FormValue("score"))
	}
	h.back(w, r, gradingPath(id), err, "ScoreSaved")
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	panel, id, ok := h.gradingPanel(r)
	mode, okMode := modeParam(r)
	answerID, err := idParam(r, "answerID")
	if !ok || !okMode || err != nil {
		http.Error(w, "invalid answer", http.StatusBadRequest)
		return
	}
	if err := panel.Load(r.Context()); err != nil {
		h.back(w, r, gradingPath(id), err, "")
		return
	}
	s, err := panel.Suggest(r.Context(), mode, answerID)
	if err == nil {
		sess := model.SessionFromContext(r.Context())
		h.console(sess).setSuggestion(&views.Suggestion{
			Mode:     string(mode),
			AnswerID: answerID,
			Score:    s.Score,
			Feedback: s.Feedback,
		})
	}
	h.back(w, r, gradingPath(id), err, "")
}

func (h *Handler) handleExportGrades(w http.ResponseWriter, r *http.Request) {
	panel, id, ok := h.gradingPanel(r)
	if !ok {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	if err := panel.Load(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	export, err := panel.Export(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="exercise_%d_grades.json"`, id))
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		slog.Error("failed to encode export", "error", err)
	}
}
