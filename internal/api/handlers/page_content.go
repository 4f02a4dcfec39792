package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/tes-agency/portal/internal/api/respond"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/domain/content"
	"github.com/tes-agency/portal/internal/storage"
)

type PageContentService interface {
	Update(ctx context.Context, actor auth.Actor, params content.UpdateParams) (storage.PageContent, error)
	GetPageContent(ctx context.Context, page string) ([]storage.PageContent, error)
	GetContentByKey(ctx context.Context, page, key string) (storage.PageContent, error)
	GetAllContent(ctx context.Context) ([]storage.PageContent, error)
}

type PageContentHandler struct {
	content PageContentService
	actors  ActorResolver
}

func NewPageContentHandler(svc PageContentService, actors ActorResolver) *PageContentHandler {
	return &PageContentHandler{content: svc, actors: actors}
}

// List handles GET /api/page-content.
func (h *PageContentHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.content.GetAllContent(r.Context())
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, "Failed to fetch content", err)
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]any{"content": nonNil(entries)})
}

// Page handles GET /api/page-content/{page}.
func (h *PageContentHandler) Page(w http.ResponseWriter, r *http.Request) {
	entries, err := h.content.GetPageContent(r.Context(), r.PathValue("page"))
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, "Failed to fetch content", err)
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]any{"content": nonNil(entries)})
}

// Entry handles GET /api/page-content/{page}/{key}.
func (h *PageContentHandler) Entry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.content.GetContentByKey(r.Context(), r.PathValue("page"), r.PathValue("key"))
	switch {
	case err == nil:
		respond.JSON(w, r, http.StatusOK, map[string]any{"content": entry})
	case errors.Is(err, content.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "Content not found", nil)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Failed to fetch content", err)
	}
}

// Update handles PUT /api/page-content.
func (h *PageContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.actors)
	if !ok {
		return
	}
	var req content.UpdateParams
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.content.Update(r.Context(), actor, req)
	switch {
	case err == nil:
		respond.JSON(w, r, http.StatusOK, map[string]any{"content": entry})
	case errors.Is(err, content.ErrForbidden):
		respond.Error(w, r, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, content.ErrInvalidInput):
		respond.Error(w, r, http.StatusBadRequest, "Invalid input", err)
	default:
		respond.Error(w, r, http.StatusInternalServerError, "Failed to update content", err)
	}
}
