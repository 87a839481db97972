package views

import (
	"github.com/a-h/templ"

	"github.com/labcentral/labcentral/internal/model"
)

// GroupData is what the group page shows.
type GroupData struct {
	Exercise  model.Exercise
	Group     *model.Group
	Partner   model.User
	Available []model.User
}

// GroupPage shows the user's pairing for one exercise or the form to create one.
func GroupPage(c Chrome, d GroupData) templ.Component {
	return page(c, "GroupTitle", func(h *htmlWriter) {
		base := "/exercises/" + itoa(d.Exercise.ID)
		h.f(`<p><a href="%s">← %s</a></p>`, h.path(base), d.Exercise.Title)
		h.f(`<div class="card"><h1>%s</h1>`, h.tr("GroupTitle"))
		if d.Group != nil {
			h.f(`<p>%s: <strong>%s</strong> (%s)</p>`, h.tr("GroupLeader"), d.Group.Leader.DisplayName(), d.Group.Leader.Email)
			h.f(`<p>%s: <strong>%s</strong> (%s)</p>`, h.tr("GroupPartner"), d.Group.Partner.DisplayName(), d.Group.Partner.Email)
			h.f(`<form method="post" action="%s" onsubmit="return confirm('%s')">`, h.path(base+"/group/disband"), h.tr("DisbandGroupConfirm"))
			h.csrf()
			h.f(`<button type="submit">%s</button></form></div>`, h.tr("DisbandGroup"))
			return
		}
		h.f(`<p class="muted">%s</p>`, h.tr("NoGroupYet"))
		if len(d.Available) == 0 {
			h.f(`<p>%s</p></div>`, h.tr("NoAvailableUsers"))
			return
		}
		h.f(`<form method="post" action="%s">`, h.path(base+"/group"))
		h.csrf()
		h.f(`<p><label>%s <select name="partner_email" required>`, h.tr("ChoosePartner"))
		for _, u := range d.Available {
			h.f(`<option value="%s">%s (%s)</option>`, u.Email, u.DisplayName(), u.Email)
		}
		h.f(`</select></label></p><button type="submit">%s</button></form></div>`, h.tr("CreateGroup"))
	})
}
