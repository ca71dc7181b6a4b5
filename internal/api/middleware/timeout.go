package middleware

import (
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// TimeoutWithExclusions returns a timeout middleware that skips paths with
// one of the given prefixes. Websocket upgrades need a hijackable
// ResponseWriter and a connection that outlives the request timeout.
func TimeoutWithExclusions(d time.Duration, excludePrefixes ...string) func(http.Handler) http.Handler {
	timeoutHandler := chimiddleware.Timeout(d)
	return func(next http.Handler) http.Handler {
		withTimeout := timeoutHandler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			withTimeout.ServeHTTP(w, r)
		})
	}
}
