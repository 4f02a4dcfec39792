// Package photos is the gallery registry. Any privileged role may add or
// remove any section; there is no ownership check.
package photos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/tes-agency/portal/internal/audit"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/metrics"
	"github.com/tes-agency/portal/internal/notify"
	"github.com/tes-agency/portal/internal/sanitize"
	"github.com/tes-agency/portal/internal/storage"
	"github.com/tes-agency/portal/internal/validation"
)

var (
	ErrNotFound     = errors.New("photo section not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	CategoryOperations = "Operations"
	CategoryTraining   = "Training"
	CategoryPatrol     = "Patrol"
	CategoryMedical    = "Medical"
	CategoryTeam       = "Team"
	CategoryEvents     = "Events"

	// CategoryAll is accepted as a list filter only.
	CategoryAll = "All"

	DefaultCategory = CategoryEvents
)

// Categories lists the values a section may carry.
var Categories = []string{
	CategoryOperations,
	CategoryTraining,
	CategoryPatrol,
	CategoryMedical,
	CategoryTeam,
	CategoryEvents,
}

type CreateParams struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
	// Photo is an image URL or a data:image/... URI.
	Photo    string `json:"photo" validate:"required"`
	Category string `json:"category"`
}

type Service struct {
	store     storage.Store
	notifier  notify.Notifier
	audit     *audit.Logger
	logger    zerolog.Logger
	validator *validator.Validate
}

func NewService(store storage.Store, notifier notify.Notifier, auditLogger *audit.Logger, logger zerolog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:     store,
		notifier:  notifier,
		audit:     auditLogger,
		logger:    logger.With().Str("component", "photos").Logger(),
		validator: validator.New(),
	}
}

// Create adds a section on behalf of actor.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (storage.PhotoSection, error) {
	if !auth.CanPerform(actor.Role, auth.ActionManagePhotoSections, auth.RoleNone) {
		s.audit.LogFailure(ctx, "photo_section.create", actor.UserID, map[string]string{"actor_role": string(actor.Role)})
		return storage.PhotoSection{}, ErrForbidden
	}

	section, err := s.normalize(params)
	if err != nil {
		return storage.PhotoSection{}, err
	}
	section.CreatedBy = actor.UserID

	created, err := s.CreatePhotoSection(ctx, section)
	if err != nil {
		return storage.PhotoSection{}, err
	}

	metrics.PhotoSections.WithLabelValues("create").Inc()
	s.audit.LogSuccess(ctx, "photo_section.create", actor.UserID, "photo_section", created.ID, map[string]string{
		"title":    created.Title,
		"category": created.Category,
	})
	s.notifier.Notify(notify.PhotoSectionAdded(created.Title, created.Description, actor.UserID, actor.Role.DisplayName()))
	return created, nil
}

func (s *Service) normalize(params CreateParams) (storage.PhotoSection, error) {
	params.Title = sanitize.Text(params.Title)
	params.Description = sanitize.Text(params.Description)
	params.Photo = strings.TrimSpace(params.Photo)
	params.Category = strings.TrimSpace(params.Category)

	if err := s.validator.Struct(params); err != nil {
		return storage.PhotoSection{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := validation.ValidateImageSource(params.Photo, "photo"); err != nil {
		return storage.PhotoSection{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	category := DefaultCategory
	if params.Category != "" {
		var ok bool
		if category, ok = ParseCategory(params.Category); !ok {
			return storage.PhotoSection{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, params.Category)
		}
	}

	return storage.PhotoSection{
		Title:       params.Title,
		Description: params.Description,
		Photo:       params.Photo,
		Category:    category,
	}, nil
}

// ParseCategory matches name against Categories, ignoring case.
func ParseCategory(name string) (string, bool) {
	for _, c := range Categories {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// CreatePhotoSection stores an already validated section.
func (s *Service) CreatePhotoSection(ctx context.Context, section storage.PhotoSection) (storage.PhotoSection, error) {
	created, err := s.store.PhotoSections().Create(ctx, section)
	if err != nil {
		return storage.PhotoSection{}, fmt.Errorf("create photo section: %w", err)
	}
	return created, nil
}

// List returns every section, or only those in category. An empty category
// or "All" disables the filter.
func (s *Service) List(ctx context.Context, category string) ([]storage.PhotoSection, error) {
	category = strings.TrimSpace(category)
	filter := ""
	if category != "" && !strings.EqualFold(category, CategoryAll) {
		var ok bool
		if filter, ok = ParseCategory(category); !ok {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
		}
	}

	sections, err := s.ListPhotoSections(ctx)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return sections, nil
	}

	matched := make([]storage.PhotoSection, 0, len(sections))
	for _, section := range sections {
		if section.Category == filter {
			matched = append(matched, section)
		}
	}
	return matched, nil
}

func (s *Service) ListPhotoSections(ctx context.Context) ([]storage.PhotoSection, error) {
	sections, err := s.store.PhotoSections().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list photo sections: %w", err)
	}
	return sections, nil
}

// Delete removes any section on behalf of a privileged actor.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id string) error {
	if !auth.CanPerform(actor.Role, auth.ActionManagePhotoSections, auth.RoleNone) {
		s.audit.LogFailure(ctx, "photo_section.delete", actor.UserID, map[string]string{"section_id": id})
		return ErrForbidden
	}

	ok, err := s.DeletePhotoSection(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	metrics.PhotoSections.WithLabelValues("delete").Inc()
	s.audit.LogSuccess(ctx, "photo_section.delete", actor.UserID, "photo_section", id, nil)
	s.logger.Info().Str("section_id", id).Str("actor", actor.UserID).Msg("photo section deleted")
	return nil
}

func (s *Service) DeletePhotoSection(ctx context.Context, id string) (bool, error) {
	ok, err := s.store.PhotoSections().Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete photo section: %w", err)
	}
	return ok, nil
}
