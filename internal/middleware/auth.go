package middleware

import (
	"net/http"
	"strings"

	"github.com/medibook/medibook-api/internal/domain/authz"
	"github.com/medibook/medibook-api/internal/pkg/jwt"
	"github.com/medibook/medibook-api/internal/pkg/logger"
	"github.com/medibook/medibook-api/internal/pkg/response"
)

// Auth returns middleware that validates the bearer token and places the
// caller into the request context as an authz.Actor
func Auth(jwtService *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateAccessToken(parts[1])
			if err != nil {
				if err == jwt.ErrExpiredToken {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			actor := authz.Actor{ID: claims.UserID, Role: authz.Role(strings.ToUpper(claims.Role))}
			ctx := authz.WithActor(r.Context(), actor)

			l := logger.FromContext(ctx).With().
				Str("actor_id", actor.ID.String()).
				Str("actor_role", string(actor.Role)).
				Logger()
			ctx = logger.WithContext(ctx, l)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
