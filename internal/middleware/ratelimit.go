package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit allows requestsPerMinute per caller. Authenticated callers are
// counted by user ID so that users behind one NAT do not share a budget;
// anonymous callers fall back to the client IP. Zero disables the limit.
// Mount it after RequireAuth so the user ID is visible.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAuthError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limited")
		}),
	)
}

func rateLimitKey(r *http.Request) (string, error) {
	if userID, ok := GetUserID(r.Context()); ok && userID != "" {
		return "user:" + userID, nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
