package views

import (
	"github.com/a-h/templ"

	"github.com/labcentral/labcentral/internal/model"
)

// UsersPage is the admin bulk account form: a local queue plus the
// temporary passwords of the last submission.
func UsersPage(c Chrome, queued []model.BulkUser, created []model.CreatedUser) templ.Component {
	return page(c, "UsersTitle", func(h *htmlWriter) {
		h.f(`<h1>%s</h1>`, h.tr("UsersTitle"))

		if len(created) > 0 {
			h.f(`<div class="card"><h2>%s</h2><p class="muted">%s</p><table><tr><th>%s</th><th>%s</th></tr>`,
				h.tr("CreatedUsers"), h.tr("CreatedUsersHint"), h.tr("FieldEmail"), h.tr("TempPassword"))
			for _, u := range created {
				h.f(`<tr><td>%s</td><td><code>%s</code></td></tr>`, u.Email, u.TempPassword)
			}
			h.raw(`</table></div>`)
		}

		h.f(`<div class="card"><h2>%s</h2>`, h.tr("AddUserTitle"))
		h.f(`<form method="post" action="%s">`, h.path("/admin/users/queue"))
		h.csrf()
		field(h, "FieldEmail", "email", "email", "", true)
		field(h, "FieldFirstName", "first_name", "text", "", true)
		field(h, "FieldLastName", "last_name", "text", "", true)
		h.f(`<button type="submit">%s</button></form></div>`, h.tr("AddUser"))

		h.f(`<div class="card"><h2>%s</h2>`, h.tr("QueuedUsers"))
		if len(queued) == 0 {
			h.f(`<p class="muted">%s</p></div>`, h.tr("QueueEmpty"))
			return
		}
		h.f(`<table><tr><th>%s</th><th>%s</th><th></th></tr>`, h.tr("FieldEmail"), h.tr("Name"))
		for i, u := range queued {
			h.f(`<tr><td>%s</td><td>%s %s</td><td>`, u.Email, u.FirstName, u.LastName)
			h.postButton(h.path("/admin/users/queue/"+itoa(int64(i))+"/delete"), h.tr("Remove"), "")
			h.raw(`</td></tr>`)
		}
		h.raw(`</table>`)
		h.f(`<form method="post" action="%s">`, h.path("/admin/users/submit"))
		h.csrf()
		h.f(`<button type="submit">%s</button></form></div>`, h.tr("CreateUsers"))
	})
}
