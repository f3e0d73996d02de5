package middleware

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware attaches a deadline to the request context. Handlers
// observe the deadline through ctx.Done() and surface the cancellation on
// their own error paths, so there is no competing write from the
// middleware when the deadline fires.
//
// The server applies this to the admin endpoints only: message requests
// are bounded per provider attempt by the provider timeout, and streaming
// responses legitimately run for minutes.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
