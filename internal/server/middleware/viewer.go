package middleware

import (
	"net/http"
	"strings"
)

// ViewerHeader carries the caller's staff initials. Identity is asserted by
// the fronting proxy; this service does not authenticate.
const ViewerHeader = "X-Careline-Viewer"

const maxInitialsLen = 8

// Viewer stores the caller's initials from ViewerHeader (or the "viewer"
// query parameter, for websocket clients) in the request context.
func Viewer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(ViewerHeader)
			if raw == "" {
				raw = r.URL.Query().Get("viewer")
			}
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			initials, ok := normalizeInitials(raw)
			if !ok {
				http.Error(w, `{"title":"Bad Request","status":400,"detail":"invalid viewer initials"}`, http.StatusBadRequest)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), initials)))
		})
	}
}

func normalizeInitials(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || len(s) > maxInitialsLen {
		return "", false
	}
	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", false
		}
	}
	return s, true
}
