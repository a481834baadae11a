// Package api implements the Othala REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/starford/othala/internal/apperr"
)

// AuthMiddleware returns middleware enforcing a Bearer token when
// enabled. With enabled false every request passes through (open
// mode). Token comparison is constant-time.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeError(w, apperr.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
