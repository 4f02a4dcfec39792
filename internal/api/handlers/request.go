package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tes-agency/portal/internal/api/respond"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/domain/users"
)

// ActorResolver loads the role of an authenticated caller.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID string) (auth.Actor, error)
}

var errEmptyBody = errors.New("empty request body")

// decodeJSON reads one JSON value from the request body into dst. It writes
// 413 or 400 itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respond.Error(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err)
	case errors.Is(err, io.EOF):
		respond.Error(w, r, http.StatusBadRequest, "Invalid input", errEmptyBody)
	default:
		respond.Error(w, r, http.StatusBadRequest, "Invalid input", fmt.Errorf("decode body: %w", err))
	}
	return false
}

// requireIdentity answers 401 when the request carries no caller identity.
func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respond.Error(w, r, http.StatusUnauthorized, "Unauthorized", nil)
	}
	return id, ok
}

// resolveActor turns the identity into an actor with its stored role. An
// identity matching no user is 403.
func resolveActor(w http.ResponseWriter, r *http.Request, actors ActorResolver, id auth.Identity) (auth.Actor, bool) {
	actor, err := actors.ResolveActor(r.Context(), id.UserID)
	switch {
	case err == nil:
		return actor, true
	case errors.Is(err, users.ErrUnauthenticated):
		respond.Error(w, r, http.StatusUnauthorized, "Unauthorized", err)
	case errors.Is(err, users.ErrForbidden):
		respond.Error(w, r, http.StatusForbidden, "Forbidden", err)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Internal server error", err)
	}
	return auth.Actor{}, false
}

// requireActor is requireIdentity followed by resolveActor.
func requireActor(w http.ResponseWriter, r *http.Request, actors ActorResolver) (auth.Actor, bool) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return auth.Actor{}, false
	}
	return resolveActor(w, r, actors, id)
}
