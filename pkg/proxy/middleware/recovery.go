package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/saturn/pkg/wire"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and returns a
// 500 Anthropic error envelope. The panic value and stack trace are
// logged; neither is exposed to the client. If the handler already wrote
// response bytes (a panic mid-stream) the envelope write fails silently
// and the connection just ends, which a streaming client observes as a
// truncated stream.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(
					wire.NewErrorResponse(wire.ErrTypeAPI, "internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
