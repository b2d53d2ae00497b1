package testutil

import (
	"net/http"

	idmiddleware "namex/internal/identity/middleware"
	idmodels "namex/internal/identity/models"
	authmw "namex/pkg/platform/middleware/auth"
	"namex/pkg/requestcontext"
)

// WithUser attaches a resolved staff user, as the identity middleware would.
func WithUser(req *http.Request, user *idmodels.User) *http.Request {
	if user == nil {
		return req
	}
	return req.WithContext(idmiddleware.WithUser(req.Context(), user))
}

// WithPrincipal attaches the token subject and roles, as the auth middleware
// would, without resolving a user.
func WithPrincipal(req *http.Request, username string, roles ...string) *http.Request {
	ctx := requestcontext.WithUsername(req.Context(), username)
	ctx = authmw.WithRoles(ctx, roles)
	return req.WithContext(ctx)
}

// ActAs is router middleware that attaches whatever user current returns.
func ActAs(current func() *idmodels.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithUser(r, current()))
		})
	}
}
