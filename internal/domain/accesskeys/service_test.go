package accesskeys

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tes-agency/portal/internal/audit"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/notify"
	"github.com/tes-agency/portal/internal/storage"
	"github.com/tes-agency/portal/internal/storage/memory"
)

var (
	director = auth.Actor{UserID: "director-1", Role: auth.RoleDirectorsOffice}
	lead     = auth.Actor{UserID: "lead-1", Role: auth.RolePublicRelationsLead}
	pr       = auth.Actor{UserID: "pr-1", Role: auth.RolePublicRelations}
	nobody   = auth.Actor{UserID: "none-1", Role: auth.RoleNone}
)

func newTestService(t *testing.T) (*Service, *memory.Store, *notify.Recorder) {
	t.Helper()
	store := memory.New()
	rec := &notify.Recorder{}
	svc := NewService(store, Config{Prefix: "TES", MaxAttempts: 3}, rec, audit.Nop(), zerolog.Nop())
	return svc, store, rec
}

// zeros always yields the same token.
type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

var _ io.Reader = zeros{}

func TestCreateAccessKey(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	key, err := svc.CreateAccessKey(ctx, auth.RolePublicRelations, "  Alice  ")
	require.NoError(t, err)

	assert.NotEmpty(t, key.ID)
	assert.Regexp(t, TokenPattern("TES", ShortSegments), key.Key)
	assert.Equal(t, "public_relations", key.Role)
	assert.Equal(t, "Alice", key.Username)
	assert.False(t, key.Used)
	assert.Nil(t, key.AssignedTo)

	got, err := svc.GetAccessKey(ctx, key.Key)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)

	got, err = svc.GetAccessKeyByID(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, key.Key, got.Key)
}

func TestCreateAccessKeyRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAccessKey(ctx, auth.RoleNone, "Alice")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.CreateAccessKey(ctx, auth.RolePublicRelations, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGeneratedTokensAreUnique(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		key, err := svc.CreateAccessKey(ctx, auth.RolePublicRelations, "user")
		require.NoError(t, err)
		assert.False(t, seen[key.Key], "duplicate token %s", key.Key)
		seen[key.Key] = true
	}
}

func TestCollisionFallsBackToLongToken(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	svc.tokens.random = zeros{}

	_, err := store.AccessKeys().Create(ctx, storage.AccessKey{Key: "TES-0000-0000", Role: "public_relations", Username: "taken"})
	require.NoError(t, err)

	key, err := svc.CreateAccessKey(ctx, auth.RolePublicRelations, "Bob")
	require.NoError(t, err)
	assert.Equal(t, "TES-0000-0000-0000-0000", key.Key)

	_, err = svc.CreateAccessKey(ctx, auth.RolePublicRelations, "Carol")
	assert.ErrorIs(t, err, ErrTokenSpaceExhausted)
}

func TestIssuePolicy(t *testing.T) {
	tests := []struct {
		name    string
		actor   auth.Actor
		role    string
		wantErr error
	}{
		{"director issues pr", director, "public_relations", nil},
		{"director issues lead", director, "public_relations_lead", nil},
		{"director issues director", director, "directors_office", nil},
		{"director unknown role", director, "janitor", ErrInvalidRole},
		{"director none role", director, "none", ErrInvalidRole},
		{"director empty role", director, "", ErrInvalidRole},
		{"lead issues pr", lead, "public_relations", nil},
		{"lead issues lead", lead, "public_relations_lead", ErrRoleNotAssignable},
		{"lead issues director", lead, "directors_office", ErrRoleNotAssignable},
		{"lead unknown role", lead, "janitor", ErrRoleNotAssignable},
		{"pr issues pr", pr, "public_relations", ErrForbidden},
		{"none issues pr", nobody, "public_relations", ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, rec := newTestService(t)
			key, err := svc.Issue(context.Background(), tt.actor, tt.role, "Alice")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, rec.Messages())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.role, key.Role)
			assert.Equal(t, []string{"New Key Created"}, rec.Titles())
		})
	}
}

func TestIssueLeadDenialIsForbidden(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Issue(context.Background(), lead, "directors_office", "Alice")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestIssueRequiresUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Issue(context.Background(), director, "public_relations", " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIssueNotification(t *testing.T) {
	svc, _, rec := newTestService(t)
	key, err := svc.Issue(context.Background(), director, "public_relations_lead", "Alice")
	require.NoError(t, err)

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Description, "Username: **Alice**")
	assert.Contains(t, msgs[0].Description, "Role: **public relations_lead**")
	assert.Contains(t, msgs[0].Description, key.Key)
}

func TestIssueAudited(t *testing.T) {
	var buf bytes.Buffer
	store := memory.New()
	svc := NewService(store, Config{}, nil, audit.NewLogger(&buf), zerolog.Nop())

	_, err := svc.Issue(context.Background(), director, "public_relations", "Alice")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"action":"access_key.create"`)
	assert.Contains(t, buf.String(), `"actor":"director-1"`)

	buf.Reset()
	_, err = svc.Issue(context.Background(), pr, "public_relations", "Alice")
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"status":"failure"`)
}

func TestListFiltersForLeads(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for _, role := range auth.AssignableRoles {
		_, err := svc.CreateAccessKey(ctx, role, string(role)+"-user")
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, director)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	visible, err := svc.List(ctx, lead)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "public_relations", visible[0].Role)

	_, err = svc.List(ctx, pr)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.List(ctx, nobody)
	assert.ErrorIs(t, err, ErrForbidden)

	keys, err := svc.ListAccessKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 3, "registry listing is unfiltered")
}

func TestRevokeCascadesToUser(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()

	key, err := svc.CreateAccessKey(ctx, auth.RolePublicRelations, "Alice")
	require.NoError(t, err)
	user, err := store.Users().Create(ctx, storage.User{KeyID: key.ID, PasswordHash: "x", Role: key.Role})
	require.NoError(t, err)
	used := true
	_, err = svc.UpdateAccessKey(ctx, key.ID, storage.AccessKeyUpdate{Used: &used, AssignedTo: &user.ID})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, director, key.ID))

	_, err = svc.GetAccessKeyByID(ctx, key.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Users().GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	keys, err := svc.List(ctx, director)
	require.NoError(t, err)
	assert.Empty(t, keys)

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Key Deleted", msgs[0].Title)
	assert.Contains(t, msgs[0].Description, "registered user was removed")
}

func TestRevokeErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	key, err := svc.CreateAccessKey(ctx, auth.RolePublicRelations, "Alice")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Revoke(ctx, lead, key.ID), ErrForbidden)
	assert.ErrorIs(t, svc.Revoke(ctx, pr, key.ID), ErrForbidden)
	assert.ErrorIs(t, svc.Revoke(ctx, director, "missing"), ErrNotFound)

	require.NoError(t, svc.Revoke(ctx, director, key.ID))
	assert.ErrorIs(t, svc.Revoke(ctx, director, key.ID), ErrNotFound)
}

func TestRegistryOperations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetAccessKey(ctx, "TES-NOPE-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	assigned := "user-1"
	_, err = svc.UpdateAccessKey(ctx, "missing", storage.AccessKeyUpdate{AssignedTo: &assigned})
	assert.ErrorIs(t, err, ErrNotFound)

	key, err := svc.CreateAccessKey(ctx, auth.RolePublicRelations, "Alice")
	require.NoError(t, err)

	ok, err := svc.DeleteAccessKey(ctx, key.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.DeleteAccessKey(ctx, key.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBootstrap(t *testing.T) {
	t.Run("generated token", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ctx := context.Background()

		key, created, err := svc.Bootstrap(ctx, "Admin", "")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "directors_office", key.Role)
		assert.Equal(t, "Admin", key.Username)
		assert.Regexp(t, TokenPattern("TES", ShortSegments), key.Key)

		_, created, err = svc.Bootstrap(ctx, "Admin", "")
		require.NoError(t, err)
		assert.False(t, created, "non-empty registry is left alone")
	})

	t.Run("fixed token", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key, created, err := svc.Bootstrap(context.Background(), "Chief", "TES-BOOT-0001")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "TES-BOOT-0001", key.Key)
	})
}
