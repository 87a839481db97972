package handler

import (
	"net/http"

	"github.com/labcentral/labcentral/internal/exercises"
	"github.com/labcentral/labcentral/internal/groups"
	"github.com/labcentral/labcentral/internal/handler/views"
	"github.com/labcentral/labcentral/internal/model"
)

func (h *Handler) groupPanel(r *http.Request) (*groups.Panel, int64, bool) {
	id, err := idParam(r, "exerciseID")
	if err != nil {
		return nil, 0, false
	}
	sess := model.SessionFromContext(r.Context())
	return groups.NewPanel(h.clientFor(r.Context()), id, sess.User.Email), id, true
}

func (h *Handler) handleGroupPage(w http.ResponseWriter, r *http.Request) {
	panel, id, ok := h.groupPanel(r)
	if !ok {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	sess := model.SessionFromContext(r.Context())
	ex, err := exercises.NewDashboard(h.clientFor(r.Context()), sess.User.IsAdmin).Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := panel.LoadMyGroup(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}

	data := views.GroupData{Exercise: *ex, Group: panel.Group()}
	if panel.HasGroup() {
		data.Partner, _ = panel.Partner()
	} else {
		data.Group = nil
		if data.Available, err = panel.AvailableUsers(r.Context()); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	render(w, r, http.StatusOK, views.GroupPage(h.chrome(w, r), data))
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	panel, id, ok := h.groupPanel(r)
	if !ok {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	err := panel.LoadMyGroup(r.Context())
	if err == nil {
		err = panel.CreateGroup(r.Context(), r.FormValue("partner_email"))
	}
	h.back(w, r, exercisePath(id)+"/group", err, "GroupCreated")
}

func (h *Handler) handleDisbandGroup(w http.ResponseWriter, r *http.Request) {
	panel, id, ok := h.groupPanel(r)
	if !ok {
		http.Error(w, "invalid exercise ID", http.StatusBadRequest)
		return
	}
	err := panel.LoadMyGroup(r.Context())
	if err == nil {
		err = panel.DisbandGroup(r.Context())
	}
	h.back(w, r, exercisePath(id)+"/group", err, "GroupDisbanded")
}
