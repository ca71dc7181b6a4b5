package middleware

import (
	"net/http"

	"github.com/launchdeck/launchdeck/internal/pkg/httputil"
)

// BodyLimit returns a middleware that limits the request body size of
// POST, PUT and PATCH requests. If maxBytes is 0, httputil.MaxJSONBodySize
// is used.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = httputil.MaxJSONBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				if r.ContentLength > maxBytes {
					httputil.RequestTooLarge(w, r, maxBytes)
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
