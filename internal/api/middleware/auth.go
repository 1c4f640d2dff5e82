// Package middleware holds the bearer-authentication middleware shared by
// every authenticated route in internal/api.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/taskflow/taskcore/internal/api/respond"
	"github.com/taskflow/taskcore/internal/auth"
)

type actorContextKey struct{}

// Authenticate extracts and verifies the bearer credential, rejecting the
// request with 401/403 before it reaches the handler if the credential is
// missing, invalid, or (for a service credential) not allow-listed.
// Grounded on the same router.Use(recovery.Middleware) composition shape
// as the teacher's recovery middleware, applied to a second concern.
func Authenticate(authz auth.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearerToken(r)
			if err != nil {
				respond.WriteUnauthorized(w, err.Error())
				return
			}
			actor, err := authz.Authorize(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrForbiddenCaller) {
					respond.WriteForbidden(w, err.Error())
					return
				}
				respond.WriteUnauthorized(w, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFrom reads the ActorInfo Authenticate attached to the request context.
func ActorFrom(ctx context.Context) (*auth.ActorInfo, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(*auth.ActorInfo)
	return actor, ok
}

// RequireService rejects any request whose actor is not a service
// credential, for endpoints only a worker (not an end user) may call.
func RequireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok || actor.Role != auth.RoleService {
			respond.WriteForbidden(w, "service credential required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
