package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tes-agency/portal/internal/api/respond"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/domain/accesskeys"
	"github.com/tes-agency/portal/internal/storage"
)

// AccessKeyService is the part of the access key registry the HTTP layer
// uses.
type AccessKeyService interface {
	GetAccessKey(ctx context.Context, token string) (storage.AccessKey, error)
	Issue(ctx context.Context, actor auth.Actor, role, username string) (storage.AccessKey, error)
	List(ctx context.Context, actor auth.Actor) ([]storage.AccessKey, error)
	Revoke(ctx context.Context, actor auth.Actor, id string) error
}

type AccessKeysHandler struct {
	keys   AccessKeyService
	actors ActorResolver
}

func NewAccessKeysHandler(keys AccessKeyService, actors ActorResolver) *AccessKeysHandler {
	return &AccessKeysHandler{keys: keys, actors: actors}
}

type CreateAccessKeyRequest struct {
	Role     string `json:"role"`
	Username string `json:"username"`
}

// Lookup handles GET /api/access-key/{key}.
func (h *AccessKeysHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.GetAccessKey(r.Context(), r.PathValue("key"))
	switch {
	case errors.Is(err, accesskeys.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "Key not found", nil)
	case err != nil:
		respond.Error(w, r, http.StatusInternalServerError, "Failed to fetch access key", err)
	default:
		respond.JSON(w, r, http.StatusOK, key)
	}
}

// Create handles POST /api/access-keys/create.
func (h *AccessKeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req CreateAccessKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		respond.Error(w, r, http.StatusBadRequest, "Username is required", nil)
		return
	}
	actor, ok := resolveActor(w, r, h.actors, id)
	if !ok {
		return
	}

	key, err := h.keys.Issue(r.Context(), actor, req.Role, req.Username)
	switch {
	case err == nil:
		respond.JSON(w, r, http.StatusCreated, map[string]any{"accessKey": key})
	case errors.Is(err, accesskeys.ErrInvalidRole):
		respond.Error(w, r, http.StatusBadRequest, "Invalid role", err)
	case errors.Is(err, accesskeys.ErrInvalidInput):
		respond.Error(w, r, http.StatusBadRequest, "Username is required", err)
	case errors.Is(err, accesskeys.ErrRoleNotAssignable):
		respond.Error(w, r, http.StatusForbidden, "You can only assign Public Relations keys", err)
	case errors.Is(err, accesskeys.ErrForbidden):
		respond.Error(w, r, http.StatusForbidden, "Forbidden", err)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Failed to create key", err)
	}
}

// List handles GET /api/access-keys.
func (h *AccessKeysHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.actors)
	if !ok {
		return
	}
	keys, err := h.keys.List(r.Context(), actor)
	switch {
	case err == nil:
		respond.JSON(w, r, http.StatusOK, map[string]any{"keys": nonNil(keys)})
	case errors.Is(err, accesskeys.ErrForbidden):
		respond.Error(w, r, http.StatusForbidden, "Forbidden", err)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Failed to fetch keys", err)
	}
}

// Delete handles DELETE /api/access-keys/{keyId}. The registered user, if
// any, is removed with the key.
func (h *AccessKeysHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.actors)
	if !ok {
		return
	}
	err := h.keys.Revoke(r.Context(), actor, r.PathValue("keyId"))
	switch {
	case err == nil:
		respond.Success(w, r)
	case errors.Is(err, accesskeys.ErrForbidden):
		respond.Error(w, r, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, accesskeys.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "Key not found", nil)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Failed to delete key", err)
	}
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
