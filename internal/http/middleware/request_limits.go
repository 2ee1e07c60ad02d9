package middleware

import (
	"net/http"
)

// RequestSizeLimit creates middleware that limits the maximum request body size.
// Oversized bodies surface as *http.MaxBytesError from the body reader.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
