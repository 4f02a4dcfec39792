package middleware

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tes-agency/portal/internal/auth"
)

// Identity stores the caller identity, when the request carries one, in the
// request context. It never rejects: handlers decide whether an identity is
// required. A malformed or expired bearer token leaves the request
// anonymous, even if the trusted header is also present.
func Identity(resolver auth.IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r)
			switch {
			case err == nil:
				r = r.WithContext(auth.WithIdentity(r.Context(), id))
			case !errors.Is(err, auth.ErrMissingToken):
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("ignoring invalid session token")
			}
			next.ServeHTTP(w, r)
		})
	}
}
