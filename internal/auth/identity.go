package auth

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader carries a caller id asserted by a trusted upstream.
const UserIDHeader = "X-User-Id"

type IdentitySource string

const (
	SourceSession IdentitySource = "session"
	SourceHeader  IdentitySource = "header"
)

// Identity is who a request claims to be. It says nothing about role: the
// role is resolved from storage for every privileged operation.
type Identity struct {
	UserID string
	Source IdentitySource
}

// IdentityResolver extracts an Identity from a request. A bearer session
// token wins over the header; the header is consulted only when
// TrustHeader is set.
type IdentityResolver struct {
	Sessions    *JWTManager
	TrustHeader bool
}

// Resolve returns ErrMissingToken when the request carries no identity and
// ErrInvalidToken when it carries a bad bearer token.
func (r IdentityResolver) Resolve(req *http.Request) (Identity, error) {
	if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
		token, err := TokenFromHeader(authz)
		if err != nil {
			return Identity{}, ErrInvalidToken
		}
		if r.Sessions == nil {
			return Identity{}, ErrInvalidToken
		}
		claims, err := r.Sessions.Validate(token)
		if err != nil {
			return Identity{}, err
		}
		return Identity{UserID: claims.Subject, Source: SourceSession}, nil
	}

	if r.TrustHeader {
		if id := strings.TrimSpace(req.Header.Get(UserIDHeader)); id != "" {
			return Identity{UserID: id, Source: SourceHeader}, nil
		}
	}
	return Identity{}, ErrMissingToken
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}
