package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/tes-agency/portal/internal/api/respond"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/domain/photos"
	"github.com/tes-agency/portal/internal/storage"
)

type PhotoSectionService interface {
	Create(ctx context.Context, actor auth.Actor, params photos.CreateParams) (storage.PhotoSection, error)
	List(ctx context.Context, category string) ([]storage.PhotoSection, error)
	Delete(ctx context.Context, actor auth.Actor, id string) error
}

type PhotoSectionsHandler struct {
	sections PhotoSectionService
	actors   ActorResolver
}

func NewPhotoSectionsHandler(sections PhotoSectionService, actors ActorResolver) *PhotoSectionsHandler {
	return &PhotoSectionsHandler{sections: sections, actors: actors}
}

// Create handles POST /api/photo-sections.
func (h *PhotoSectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.actors)
	if !ok {
		return
	}
	var req photos.CreateParams
	if !decodeJSON(w, r, &req) {
		return
	}

	section, err := h.sections.Create(r.Context(), actor, req)
	switch {
	case err == nil:
		respond.JSON(w, r, http.StatusCreated, map[string]any{"photoSection": section})
	case errors.Is(err, photos.ErrForbidden):
		respond.Error(w, r, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, photos.ErrInvalidInput):
		respond.Error(w, r, http.StatusBadRequest, "Invalid input", err)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Failed to create photo section", err)
	}
}

// List handles GET /api/photo-sections. It is public; ?category= narrows
// the result.
func (h *PhotoSectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sections, err := h.sections.List(r.Context(), r.URL.Query().Get("category"))
	switch {
	case err == nil:
		respond.JSON(w, r, http.StatusOK, map[string]any{"photoSections": nonNil(sections)})
	case errors.Is(err, photos.ErrInvalidInput):
		respond.Error(w, r, http.StatusBadRequest, "Invalid category", err)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Failed to fetch photo sections", err)
	}
}

// Delete handles DELETE /api/photo-sections/{sectionId}.
func (h *PhotoSectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.actors)
	if !ok {
		return
	}
	err := h.sections.Delete(r.Context(), actor, r.PathValue("sectionId"))
	switch {
	case err == nil:
		respond.Success(w, r)
	case errors.Is(err, photos.ErrForbidden):
		respond.Error(w, r, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, photos.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "Photo section not found", nil)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Failed to delete photo section", err)
	}
}
