package middleware

import (
	"net/http"

	"github.com/medibook/medibook-api/internal/domain/authz"
	"github.com/medibook/medibook-api/internal/pkg/errorhandler"
)

// RequireAdmin rejects non-administrators before the route touches the
// request body. It must run after Auth.
func RequireAdmin(gate authz.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := authz.RequireAdmin(r.Context(), gate); err != nil {
				errorhandler.Respond(r.Context(), w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
