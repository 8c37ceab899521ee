package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RequireOwner restricts a per-user route to the authenticated user named by
// the {param} URL value. Unauthenticated requests pass, so the route stays
// usable when auth is disabled.
func RequireOwner(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if ok && chi.URLParam(r, param) != userID {
				writeAuthError(w, http.StatusForbidden, "access to another user's payments is not allowed", "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
