package views

import (
	"github.com/a-h/templ"

	"github.com/labcentral/labcentral/internal/model"
)

// ExerciseCard is one exercise with its container state.
type ExerciseCard struct {
	Exercise model.Exercise
	Status   model.ContainerStatus
	ProxyURL string
}

// DashboardPage lists the exercises.
func DashboardPage(c Chrome, cards []ExerciseCard, maxArchive string) templ.Component {
	return page(c, "DashboardTitle", func(h *htmlWriter) {
		isAdmin := c.Session != nil && c.Session.User.IsAdmin
		h.f(`<h1>%s</h1>`, h.tr("DashboardTitle"))
		if len(cards) == 0 {
			h.f(`<p class="muted">%s</p>`, h.tr("NoExercises"))
		}
		for _, card := range cards {
			h.raw(`<div class="card">`)
			h.f(`<h3><a href="%s">%s</a></h3>`, h.path("/exercises/"+itoa(card.Exercise.ID)), card.Exercise.Title)
			if card.Exercise.Description != "" {
				h.f(`<p>%s</p>`, card.Exercise.Description)
			}
			h.render(StatusPanel(card))
			if isAdmin {
				h.f(`<form method="post" action="%s" class="inline" onsubmit="return confirm('%s')">`,
					h.path("/exercises/"+itoa(card.Exercise.ID)+"/delete"), h.tr("DeleteExerciseConfirm"))
				h.csrf()
				h.f(`<button type="submit">%s</button></form>`, h.tr("DeleteExercise"))
			}
			h.raw(`</div>`)
		}
		if isAdmin {
			h.f(`<div class="card"><h2>%s</h2>`, h.tr("CreateExerciseTitle"))
			h.f(`<form method="post" action="%s" enctype="multipart/form-data">`, h.path("/exercises"))
			h.csrf()
			field(h, "FieldTitle", "title", "text", "", true)
			h.f(`<p><label>%s<br><textarea name="description" rows="3"></textarea></label></p>`, h.tr("FieldDescription"))
			h.f(`<p><label>%s (%s)<br><input type="file" name="zipfile" accept=".zip,application/zip" required></label></p>`,
				h.tr("FieldArchive"), maxArchive)
			h.f(`<button type="submit">%s</button></form></div>`, h.tr("CreateExerciseSubmit"))
		}
	})
}

// StatusPanel shows the container status with its start, stop or open
// control. While a transition is in flight it polls itself.
func StatusPanel(card ExerciseCard) templ.Component {
	return component(func(h *htmlWriter) {
		id := itoa(card.Exercise.ID)
		status := card.Status
		if status == "" {
			status = model.StatusStopped
		}
		if status.InFlight() {
			h.f(`<div id="status-%s" hx-get="%s" hx-trigger="every 2s" hx-swap="outerHTML">`, id, h.path("/exercises/"+id+"/status"))
		} else {
			h.f(`<div id="status-%s">`, id)
		}
		h.f(`<span class="status %s">%s</span> `, string(status), h.tr("Status_"+string(status)))
		switch {
		case status.CanStart():
			h.postButton(h.path("/exercises/"+id+"/start"), h.tr("StartExercise"), "")
		case status.InFlight():
			h.f(`<button type="button" disabled>%s</button>`, h.tr("PleaseWait"))
		}
		if status.CanStop() {
			h.postButton(h.path("/exercises/"+id+"/stop"), h.tr("StopExercise"), "")
		}
		if status == model.StatusRunning && card.ProxyURL != "" {
			h.f(` <a href="%s" target="_blank" rel="noopener">%s</a>`, templ.URL(card.ProxyURL), h.tr("OpenExercise"))
		}
		h.raw(`</div>`)
	})
}
