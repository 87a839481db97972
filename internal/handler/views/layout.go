// Package views renders the HTML of the web console.
package views

import (
	"github.com/a-h/templ"

	"github.com/labcentral/labcentral/internal/model"
)

// Flash is a one-shot alert carried across a redirect.
type Flash struct {
	Kind    string // "error" or "success"
	Message string
}

// Chrome is the state every page header needs.
type Chrome struct {
	Session  *model.Session
	DarkMode bool
	Lang     string
	Flash    Flash
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6f8;color:#1d2330}
body.dark{background:#14171d;color:#e4e7ec}
header{display:flex;gap:1rem;align-items:center;padding:.75rem 1.5rem;background:#243b6b;color:#fff}
header a,header button{color:#fff}
header .spacer{flex:1}
main{max-width:60rem;margin:1.5rem auto;padding:0 1rem}
.card{background:#fff;border-radius:.5rem;padding:1rem 1.25rem;margin-bottom:1rem;box-shadow:0 1px 2px #0002}
body.dark .card{background:#1f242d}
.alert{padding:.75rem 1rem;border-radius:.4rem;margin-bottom:1rem}
.alert.error{background:#fde2e1;color:#8a1c1c}
.alert.success{background:#dff5e3;color:#1d5e2c}
.status{display:inline-block;padding:.1rem .6rem;border-radius:1rem;font-size:.85rem}
.status.running{background:#2e8b57;color:#fff}
.status.starting,.status.stopping{background:#d9a400;color:#000}
.status.stopped{background:#888;color:#fff}
.status.timed_out{background:#b03a2e;color:#fff}
.inline{display:inline}
.muted{color:#777}
table{width:100%;border-collapse:collapse}
td,th{padding:.4rem;border-bottom:1px solid #ddd;text-align:left;vertical-align:top}
`

// Layout wraps body in the page chrome.
func Layout(c Chrome, title string, body templ.Component) templ.Component {
	return component(func(h *htmlWriter) {
		lang := c.Lang
		if lang == "" {
			lang = "es"
		}
		h.f(`<!DOCTYPE html><html lang="%s"><head><meta charset="utf-8">`, lang)
		h.f(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.f(`<title>%s · %s</title>`, title, h.tr("AppTitle"))
		h.f(`<script src="https://unpkg.com/htmx.org@2.0.4"></script>`)
		h.f(`<style>%s</style></head>`, trusted(styles))
		if c.DarkMode {
			h.raw(`<body class="dark">`)
		} else {
			h.raw(`<body>`)
		}

		h.raw(`<header>`)
		h.f(`<strong><a href="%s">%s</a></strong>`, h.path("/"), h.tr("AppTitle"))
		if c.Session != nil && !c.Session.ForcePasswordChange {
			h.f(`<a href="%s">%s</a>`, h.path("/"), h.tr("NavExercises"))
			if c.Session.User.IsAdmin {
				h.f(`<a href="%s">%s</a>`, h.path("/admin/users"), h.tr("NavUsers"))
			}
		}
		h.raw(`<span class="spacer"></span>`)
		for _, l := range []string{"es", "en"} {
			if l == lang {
				continue
			}
			h.f(`<form method="post" action="%s" class="inline">`, h.path("/prefs/lang"))
			h.csrf()
			h.f(`<input type="hidden" name="lang" value="%s"><button type="submit">%s</button></form>`, l, h.tr("Lang_"+l))
		}
		darkLabel := "DarkModeOn"
		if c.DarkMode {
			darkLabel = "DarkModeOff"
		}
		h.postButton(h.path("/prefs/dark-mode"), h.tr(darkLabel), "")
		if c.Session != nil {
			h.f(`<span>%s</span>`, c.Session.User.DisplayName())
			h.postButton(h.path("/logout"), h.tr("Logout"), "")
		}
		h.raw(`</header><main>`)

		if c.Flash.Message != "" {
			kind := c.Flash.Kind
			if kind != "success" {
				kind = "error"
			}
			h.f(`<div class="alert %s" role="alert">%s</div>`, kind, c.Flash.Message)
		}
		h.render(body)
		h.raw(`</main></body></html>`)
	})
}

// page is a Layout whose title is the translation of titleID.
func page(c Chrome, titleID string, body func(h *htmlWriter)) templ.Component {
	return component(func(h *htmlWriter) {
		h.render(Layout(c, h.tr(titleID), component(body)))
	})
}

// ErrorPage shows a full-page error.
func ErrorPage(c Chrome, message string) templ.Component {
	return page(c, "ErrorTitle", func(h *htmlWriter) {
		h.f(`<div class="card"><h2>%s</h2><p>%s</p><p><a href="%s">%s</a></p></div>`,
			h.tr("ErrorTitle"), message, h.path("/"), h.tr("BackToExercises"))
	})
}
