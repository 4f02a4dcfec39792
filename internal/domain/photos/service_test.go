package photos

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tes-agency/portal/internal/audit"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/notify"
	"github.com/tes-agency/portal/internal/storage/memory"
)

var (
	pr     = auth.Actor{UserID: "pr-1", Role: auth.RolePublicRelations}
	lead   = auth.Actor{UserID: "lead-1", Role: auth.RolePublicRelationsLead}
	chief  = auth.Actor{UserID: "dir-1", Role: auth.RoleDirectorsOffice}
	nobody = auth.Actor{UserID: "none-1", Role: auth.RoleNone}
)

func newTestService() (*Service, *notify.Recorder) {
	rec := &notify.Recorder{}
	return NewService(memory.New(), rec, audit.Nop(), zerolog.Nop()), rec
}

func validParams() CreateParams {
	return CreateParams{
		Title:       "Night patrol",
		Description: "Downtown sweep",
		Photo:       "https://cdn.example.com/patrol.jpg",
		Category:    "Patrol",
	}
}

func TestCreate(t *testing.T) {
	svc, rec := newTestService()

	section, err := svc.Create(context.Background(), pr, validParams())
	require.NoError(t, err)

	assert.NotEmpty(t, section.ID)
	assert.Equal(t, "Night patrol", section.Title)
	assert.Equal(t, "Patrol", section.Category)
	assert.Equal(t, "pr-1", section.CreatedBy)
	assert.False(t, section.CreatedAt.IsZero())

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Photo Section Added", msgs[0].Title)
	assert.Contains(t, msgs[0].Description, "Added by: **pr-1** (public relations)")
}

func TestCreateDefaultsAndSanitizes(t *testing.T) {
	svc, _ := newTestService()
	params := validParams()
	params.Title = "<b>Medal</b> ceremony<script>alert(1)</script>"
	params.Category = ""
	params.Photo = "data:image/png;base64,iVBORw0KGgo="

	section, err := svc.Create(context.Background(), lead, params)
	require.NoError(t, err)
	assert.Equal(t, "Medal ceremony", section.Title)
	assert.Equal(t, CategoryEvents, section.Category)
}

func TestCreateKeepsPunctuation(t *testing.T) {
	svc, rec := newTestService()
	params := validParams()
	params.Title = "Alice's squad & friends"
	params.Description = `5 > 3 "quoted"`

	section, err := svc.Create(context.Background(), lead, params)
	require.NoError(t, err)
	assert.Equal(t, "Alice's squad & friends", section.Title)
	assert.Equal(t, `5 > 3 "quoted"`, section.Description)

	listed, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Alice's squad & friends", listed[0].Title)

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Description, "Alice's squad & friends")
	assert.NotContains(t, msgs[0].Description, "&amp;")
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"empty title", func(p *CreateParams) { p.Title = "  " }},
		{"markup-only title", func(p *CreateParams) { p.Title = "<img src=x>" }},
		{"empty description", func(p *CreateParams) { p.Description = "" }},
		{"empty photo", func(p *CreateParams) { p.Photo = "" }},
		{"bad photo", func(p *CreateParams) { p.Photo = "javascript:alert(1)" }},
		{"unknown category", func(p *CreateParams) { p.Category = "Parties" }},
		{"all is not a category", func(p *CreateParams) { p.Category = "All" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec := newTestService()
			params := validParams()
			tt.mutate(&params)
			_, err := svc.Create(context.Background(), chief, params)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, rec.Messages())
		})
	}
}

func TestCreateForbidden(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), nobody, validParams())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListFilter(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for _, category := range []string{"Patrol", "Training", "Patrol"} {
		params := validParams()
		params.Category = category
		_, err := svc.Create(ctx, pr, params)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	all, err = svc.List(ctx, "All")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	patrol, err := svc.List(ctx, "patrol")
	require.NoError(t, err)
	assert.Len(t, patrol, 2)

	medical, err := svc.List(ctx, "Medical")
	require.NoError(t, err)
	assert.Empty(t, medical)

	_, err = svc.List(ctx, "Parties")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteAnySection(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	section, err := svc.Create(ctx, chief, validParams())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, nobody, section.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, pr, section.ID), "no ownership check")
	assert.ErrorIs(t, svc.Delete(ctx, pr, section.ID), ErrNotFound)

	sections, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, sections)
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("medical")
	assert.True(t, ok)
	assert.Equal(t, CategoryMedical, c)

	_, ok = ParseCategory("All")
	assert.False(t, ok)
}
