package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/smarthome/internal/handlers/render"
	"github.com/nkiryanov/smarthome/internal/handlers/userctx"
	"github.com/nkiryanov/smarthome/internal/models"
)

type authenticator interface {
	AccessFromRequest(r *http.Request) string
	Authenticate(ctx context.Context, access string) (models.Principal, error)
}

type debugLogger interface {
	Debug(msg string, args ...any)
}

// Authenticate puts the principal to request context if access token is honored
// It never rejects the request: without principal the request is anonymous
func Authenticate(as authenticator, l debugLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access := as.AccessFromRequest(r)
			if access == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := as.Authenticate(r.Context(), access)
			if err != nil {
				l.Debug("Access token not honored, request is anonymous", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), principal)))
		})
	}
}

// RequireAuth rejects anonymous requests
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userctx.FromContext(r.Context()); !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission rejects requests of principals without the authority, e.g. 'DEVICE:UPDATE'
func RequirePermission(authority string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := userctx.FromContext(r.Context())
			if !principal.HasPermission(authority) {
				render.ServiceError(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
