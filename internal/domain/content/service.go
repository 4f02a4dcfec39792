// Package content stores editable text blocks for the site's pages, keyed by
// page and key.
package content

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
	"github.com/tes-agency/portal/internal/sanitize"
	"github.com/tes-agency/portal/internal/storage"
)

var (
	ErrNotFound     = errors.New("page content not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

type UpdateParams struct {
	Page    string `json:"page" validate:"required,max=100"`
	Section string `json:"section" validate:"required,max=100"`
	Key     string `json:"key" validate:"required,max=100"`
	Content string `json:"content" validate:"required,max=100000"`
}

type Service struct {
	store     storage.Store
	audit     *audit.Logger
	logger    zerolog.Logger
	validator *validator.Validate
}

func NewService(store storage.Store, auditLogger *audit.Logger, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		audit:     auditLogger,
		logger:    logger.With().Str("component", "content").Logger(),
		validator: validator.New(),
	}
}

// Update upserts the block identified by (Page, Key) on behalf of actor.
// Content keeps basic formatting; anything executable is stripped.
func (s *Service) Update(ctx context.Context, actor auth.Actor, params UpdateParams) (storage.PageContent, error) {
	if !auth.CanPerform(actor.Role, auth.ActionManagePageContent, auth.RoleNone) {
		s.audit.LogFailure(ctx, "page_content.update", actor.UserID, map[string]string{
			"page": params.Page,
			"key":  params.Key,
		})
		return storage.PageContent{}, ErrForbidden
	}

	params.Page = strings.TrimSpace(params.Page)
	params.Section = strings.TrimSpace(params.Section)
	params.Key = strings.TrimSpace(params.Key)
	params.Content = sanitize.HTML(params.Content)
	if err := s.validator.Struct(params); err != nil {
		return storage.PageContent{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	saved, err := s.UpdatePageContent(ctx, storage.PageContent{
		Page:      params.Page,
		Section:   params.Section,
		Key:       params.Key,
		Content:   params.Content,
		UpdatedBy: actor.UserID,
	})
	if err != nil {
		return storage.PageContent{}, err
	}

	metrics.PageContentUpdates.Inc()
	s.audit.LogSuccess(ctx, "page_content.update", actor.UserID, "page_content", saved.ID, map[string]string{
		"page": saved.Page,
		"key":  saved.Key,
	})
	return saved, nil
}

// UpdatePageContent upserts entry without a policy check.
func (s *Service) UpdatePageContent(ctx context.Context, entry storage.PageContent) (storage.PageContent, error) {
	saved, err := s.store.PageContent().Upsert(ctx, entry)
	if err != nil {
		return storage.PageContent{}, fmt.Errorf("upsert page content: %w", err)
	}
	return saved, nil
}

func (s *Service) GetPageContent(ctx context.Context, page string) ([]storage.PageContent, error) {
	entries, err := s.store.PageContent().ListByPage(ctx, strings.TrimSpace(page))
	if err != nil {
		return nil, fmt.Errorf("list page content: %w", err)
	}
	return entries, nil
}

func (s *Service) GetContentByKey(ctx context.Context, page, key string) (storage.PageContent, error) {
	entry, err := s.store.PageContent().Get(ctx, strings.TrimSpace(page), strings.TrimSpace(key))
	if errors.Is(err, storage.ErrNotFound) {
		return storage.PageContent{}, ErrNotFound
	}
	if err != nil {
		return storage.PageContent{}, fmt.Errorf("get page content: %w", err)
	}
	return entry, nil
}

func (s *Service) GetAllContent(ctx context.Context) ([]storage.PageContent, error) {
	entries, err := s.store.PageContent().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list page content: %w", err)
	}
	return entries, nil
}
