package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/launchdeck/launchdeck/internal/pkg/httputil"
)

// BearerToken returns a middleware that requires "Authorization: Bearer
// <token>". Websocket clients, which cannot set headers from a browser, may
// pass the token as the access_token query parameter. An empty token
// disables the check.
func BearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				got = strings.TrimPrefix(h, "Bearer ")
			} else if q := r.URL.Query().Get("access_token"); q != "" {
				got = q
			}

			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httputil.WriteError(w, r, http.StatusUnauthorized, httputil.CodeUnauthorized, "Unauthorized", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
