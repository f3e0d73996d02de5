package middleware

import "net/http"

// BodyLimitMiddleware caps request body reads at maxBytes through
// http.MaxBytesReader, so an oversized upload fails the handler's read
// with *http.MaxBytesError instead of being buffered whole. A
// non-positive limit leaves the body uncapped.
func BodyLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
