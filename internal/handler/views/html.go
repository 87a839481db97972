package views

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	appI18n "github.com/labcentral/labcentral/internal/i18n"
	"github.com/labcentral/labcentral/internal/model"
)

// htmlWriter accumulates the first write error so components can emit
// markup without checking every call.
type htmlWriter struct {
	ctx context.Context
	w   io.Writer
	err error
}

func newWriter(ctx context.Context, w io.Writer) *htmlWriter {
	return &htmlWriter{ctx: ctx, w: w}
}

// raw writes s unescaped.
func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

// text writes s escaped.
func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// f formats markup. String arguments are escaped; use templ.SafeURL or
// trusted for values that must not be.
func (h *htmlWriter) f(format string, args ...any) {
	for i, a := range args {
		switch v := a.(type) {
		case string:
			args[i] = templ.EscapeString(v)
		case templ.SafeURL:
			args[i] = templ.EscapeString(string(v))
		case trusted:
			args[i] = string(v)
		}
	}
	h.raw(fmt.Sprintf(format, args...))
}

// t writes the escaped translation of id.
func (h *htmlWriter) t(id string) {
	h.text(appI18n.T(h.ctx, id))
}

// tr returns the translation of id.
func (h *htmlWriter) tr(id string) string {
	return appI18n.T(h.ctx, id)
}

// render writes a child component.
func (h *htmlWriter) render(c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(h.ctx, h.w)
	}
}

// path prefixes p with the deployment base path.
func (h *htmlWriter) path(p string) templ.SafeURL {
	return templ.URL(model.BasePathFromContext(h.ctx) + p)
}

// csrf writes the hidden CSRF field of a form.
func (h *htmlWriter) csrf() {
	h.f(`<input type="hidden" name="csrf_token" value="%s">`, model.CSRFTokenFromContext(h.ctx))
}

// postButton writes a one-button form posting to action.
func (h *htmlWriter) postButton(action templ.SafeURL, label, class string) {
	h.f(`<form method="post" action="%s" class="inline">`, action)
	h.csrf()
	h.f(`<button type="submit" class="%s">%s</button></form>`, class, label)
}

// trusted marks markup that f must not escape.
type trusted string

func component(fn func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newWriter(ctx, w)
		fn(h)
		return h.err
	})
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// formatScore prints a score without trailing zeros.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatScorePtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatScore(*v)
}
