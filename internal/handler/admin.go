package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/labcentral/labcentral/internal/handler/views"
	"github.com/labcentral/labcentral/internal/model"
)

func (h *Handler) handleUsersPage(w http.ResponseWriter, r *http.Request) {
	c := h.console(model.SessionFromContext(r.Context()))
	render(w, r, http.StatusOK, views.UsersPage(h.chrome(w, r), c.queue.Users(), c.takeCreated()))
}

func (h *Handler) handleQueueUser(w http.ResponseWriter, r *http.Request) {
	c := h.console(model.SessionFromContext(r.Context()))
	err := c.queue.Add(model.BulkUser{
		Email:     r.FormValue("email"),
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
	})
	h.back(w, r, "/admin/users", err, "")
}

func (h *Handler) handleUnqueueUser(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}
	c := h.console(model.SessionFromContext(r.Context()))
	h.back(w, r, "/admin/users", c.queue.Remove(i), "")
}

func (h *Handler) handleSubmitUsers(w http.ResponseWriter, r *http.Request) {
	c := h.console(model.SessionFromContext(r.Context()))
	created, err := c.queue.Submit(r.Context(), h.clientFor(r.Context()))
	if err == nil {
		c.setCreated(created)
	}
	h.back(w, r, "/admin/users", err, "UsersCreated")
}
