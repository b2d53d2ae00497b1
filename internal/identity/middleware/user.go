// Package middleware resolves the authenticated principal into a staff user
// for handlers further down the chain.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"namex/internal/identity/models"
	"namex/pkg/platform/httputil"
	authmw "namex/pkg/platform/middleware/auth"
	"namex/pkg/requestcontext"
)

// UserResolver maps a username and raw role claims to a user.
type UserResolver interface {
	Resolve(ctx context.Context, username string, roles []string) (*models.User, error)
}

type userKey struct{}

// WithUser injects the acting user into a context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the acting user, or nil.
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}

// RequireUser must run after auth.RequireAuth.
func RequireUser(resolver UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			user, err := resolver.Resolve(ctx, requestcontext.Username(ctx), authmw.GetRoles(ctx))
			if err != nil {
				logger.WarnContext(ctx, "failed to resolve user",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
		})
	}
}
