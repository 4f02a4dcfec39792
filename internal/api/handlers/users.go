package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tes-agency/portal/internal/api/respond"
	"github.com/tes-agency/portal/internal/domain/users"
)

type UserService interface {
	Register(ctx context.Context, params users.RegisterParams) (users.Registered, error)
	Login(ctx context.Context, key, password string) (users.Session, error)
}

type UsersHandler struct {
	users UserService
}

func NewUsersHandler(svc UserService) *UsersHandler {
	return &UsersHandler{users: svc}
}

type LoginRequest struct {
	Key      string `json:"key"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User      users.SessionUser `json:"user"`
	Token     string            `json:"token,omitempty"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
}

// Register handles POST /api/users/register. The key is named by keyId or,
// failing that, by its token in key.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req users.RegisterParams
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req)
	switch {
	case err == nil:
		respond.JSON(w, r, http.StatusCreated, map[string]any{"user": user})
	case errors.Is(err, users.ErrInvalidInput):
		respond.Error(w, r, http.StatusBadRequest, "Invalid input", err)
	case errors.Is(err, users.ErrInvalidKey), errors.Is(err, users.ErrKeyAlreadyUsed):
		respond.Error(w, r, http.StatusBadRequest, "Invalid or already used key", err)
	case errors.Is(err, users.ErrAlreadyRegistered):
		respond.Error(w, r, http.StatusBadRequest, "Key already registered", err)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Failed to register user", err)
	}
}

// Login handles POST /api/auth/login.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Key) == "" || req.Password == "" {
		respond.Error(w, r, http.StatusBadRequest, "Missing key or password", nil)
		return
	}

	session, err := h.users.Login(r.Context(), req.Key, req.Password)
	switch {
	case err == nil:
		resp := LoginResponse{User: session.User, Token: session.Token}
		if !session.ExpiresAt.IsZero() {
			resp.ExpiresAt = &session.ExpiresAt
		}
		respond.JSON(w, r, http.StatusOK, resp)
	case errors.Is(err, users.ErrInvalidInput):
		respond.Error(w, r, http.StatusBadRequest, "Missing key or password", err)
	case errors.Is(err, users.ErrInvalidCredentials):
		respond.Error(w, r, http.StatusUnauthorized, "Invalid credentials", err)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Login failed", err)
	}
}
