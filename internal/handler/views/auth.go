package views

import (
	"net/url"

	"github.com/a-h/templ"
)

func field(h *htmlWriter, labelID, name, typ, value string, required bool) {
	req := ""
	if required {
		req = " required"
	}
	h.f(`<p><label>%s<br><input type="%s" name="%s" value="%s"%s></label></p>`,
		h.tr(labelID), typ, name, value, trusted(req))
}

// LoginPage renders the login form.
func LoginPage(c Chrome, email string) templ.Component {
	return page(c, "LoginTitle", func(h *htmlWriter) {
		h.f(`<div class="card"><h2>%s</h2><form method="post" action="%s">`, h.tr("LoginTitle"), h.path("/login"))
		h.csrf()
		field(h, "FieldEmail", "email", "email", email, true)
		field(h, "FieldPassword", "password", "password", "", true)
		h.f(`<button type="submit">%s</button></form>`, h.tr("LoginSubmit"))
		h.f(`<p><a href="%s">%s</a> · <a href="%s">%s</a></p></div>`,
			h.path("/signup"), h.tr("SignupLink"), h.path("/password/forgot"), h.tr("ForgotPasswordLink"))
	})
}

// SignupPage renders the account creation form.
func SignupPage(c Chrome, email string) templ.Component {
	return page(c, "SignupTitle", func(h *htmlWriter) {
		h.f(`<div class="card"><h2>%s</h2><form method="post" action="%s">`, h.tr("SignupTitle"), h.path("/signup"))
		h.csrf()
		field(h, "FieldEmail", "email", "email", email, true)
		field(h, "FieldPassword", "password", "password", "", true)
		field(h, "FieldConfirmPassword", "confirm_password", "password", "", true)
		h.f(`<button type="submit">%s</button></form>`, h.tr("SignupSubmit"))
		h.f(`<p><a href="%s">%s</a></p></div>`, h.path("/login"), h.tr("LoginLink"))
	})
}

// ForgotPasswordPage asks for an email. When token is set the reset token
// issued by the backend is shown with a link to use it.
func ForgotPasswordPage(c Chrome, email, token string) templ.Component {
	return page(c, "ForgotPasswordTitle", func(h *htmlWriter) {
		h.f(`<div class="card"><h2>%s</h2>`, h.tr("ForgotPasswordTitle"))
		if token != "" {
			h.f(`<p>%s <code>%s</code></p>`, h.tr("ResetTokenIssued"), token)
			h.f(`<p><a href="%s">%s</a></p>`, h.path("/password/reset?token="+url.QueryEscape(token)), h.tr("ResetPasswordLink"))
		}
		h.f(`<form method="post" action="%s">`, h.path("/password/forgot"))
		h.csrf()
		field(h, "FieldEmail", "email", "email", email, true)
		h.f(`<button type="submit">%s</button></form>`, h.tr("ForgotPasswordSubmit"))
		h.f(`<p><a href="%s">%s</a></p></div>`, h.path("/login"), h.tr("LoginLink"))
	})
}

// ResetPasswordPage sets a new password with a reset token.
func ResetPasswordPage(c Chrome, token string) templ.Component {
	return page(c, "ResetPasswordTitle", func(h *htmlWriter) {
		h.f(`<div class="card"><h2>%s</h2><form method="post" action="%s">`, h.tr("ResetPasswordTitle"), h.path("/password/reset"))
		h.csrf()
		field(h, "FieldResetToken", "token", "text", token, true)
		field(h, "FieldNewPassword", "new_password", "password", "", true)
		h.f(`<button type="submit">%s</button></form></div>`, h.tr("ResetPasswordSubmit"))
	})
}

// ForcePasswordPage replaces a temporary password.
func ForcePasswordPage(c Chrome) templ.Component {
	return page(c, "ForcePasswordTitle", func(h *htmlWriter) {
		h.f(`<div class="card"><h2>%s</h2><p>%s</p><form method="post" action="%s">`,
			h.tr("ForcePasswordTitle"), h.tr("ForcePasswordHint"), h.path("/password/force"))
		h.csrf()
		field(h, "FieldNewPassword", "new_password", "password", "", true)
		h.f(`<button type="submit">%s</button></form></div>`, h.tr("ForcePasswordSubmit"))
	})
}
