package i18n

import "net/http"

// Middleware injects a localizer into every request context. lang returns the
// stored preference of the requester, or "" to fall back to Accept-Language.
func Middleware(lang func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var pref string
			if lang != nil {
				pref = lang(r)
			}
			loc := NewLocalizer(pref, r.Header.Get("Accept-Language"))
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}
