// Package storagetest holds the behavioural contract every storage.Store
// backend must satisfy. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tes-agency/portal/internal/storage"
)

// Factory returns an empty store for a single subtest.
type Factory func(t *testing.T) storage.Store

// Run exercises the full storage contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("AccessKeyLifecycle", func(t *testing.T) { testAccessKeyLifecycle(t, newStore(t)) })
	t.Run("AccessKeyUniqueToken", func(t *testing.T) { testAccessKeyUniqueToken(t, newStore(t)) })
	t.Run("AccessKeyListOrder", func(t *testing.T) { testAccessKeyListOrder(t, newStore(t)) })
	t.Run("UserLifecycle", func(t *testing.T) { testUserLifecycle(t, newStore(t)) })
	t.Run("UserOnePerKey", func(t *testing.T) { testUserOnePerKey(t, newStore(t)) })
	t.Run("PhotoSections", func(t *testing.T) { testPhotoSections(t, newStore(t)) })
	t.Run("PageContentUpsert", func(t *testing.T) { testPageContentUpsert(t, newStore(t)) })
	t.Run("WithTxCommits", func(t *testing.T) { testWithTxCommits(t, newStore(t)) })
	t.Run("WithTxRollsBack", func(t *testing.T) { testWithTxRollsBack(t, newStore(t)) })
}

func testAccessKeyLifecycle(t *testing.T, store storage.Store) {
	ctx := context.Background()
	repo := store.AccessKeys()

	created, err := repo.Create(ctx, storage.AccessKey{Key: "TES-AAAA-BBBB", Role: "public_relations", Username: "Alice"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.Used)
	assert.Nil(t, created.AssignedTo)
	assert.False(t, created.CreatedAt.IsZero())

	byKey, err := repo.GetByKey(ctx, "TES-AAAA-BBBB")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byKey.ID)
	assert.Equal(t, "Alice", byKey.Username)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "TES-AAAA-BBBB", byID.Key)

	used := true
	assignee := "user-1"
	updated, err := repo.Update(ctx, created.ID, storage.AccessKeyUpdate{Used: &used, AssignedTo: &assignee})
	require.NoError(t, err)
	assert.True(t, updated.Used)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, "user-1", *updated.AssignedTo)
	assert.Equal(t, "Alice", updated.Username, "fields absent from the update are kept")
	assert.Equal(t, "public_relations", updated.Role)

	_, err = repo.Update(ctx, "missing", storage.AccessKeyUpdate{Used: &used})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = repo.GetByKey(ctx, "TES-AAAA-BBBB")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = repo.GetByID(ctx, created.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func testAccessKeyUniqueToken(t *testing.T, store storage.Store) {
	ctx := context.Background()
	repo := store.AccessKeys()

	_, err := repo.Create(ctx, storage.AccessKey{Key: "TES-DUPE-0001", Role: "public_relations", Username: "A"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, storage.AccessKey{Key: "TES-DUPE-0001", Role: "directors_office", Username: "B"})
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testAccessKeyListOrder(t *testing.T, store storage.Store) {
	ctx := context.Background()
	repo := store.AccessKeys()

	tokens := []string{"TES-0001-AAAA", "TES-0002-BBBB", "TES-0003-CCCC"}
	for i, token := range tokens {
		_, err := repo.Create(ctx, storage.AccessKey{
			Key:       token,
			Role:      "public_relations",
			Username:  token,
			CreatedAt: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	keys, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	for i, key := range keys {
		assert.Equal(t, tokens[i], key.Key)
	}
}

func testUserLifecycle(t *testing.T, store storage.Store) {
	ctx := context.Background()

	key, err := store.AccessKeys().Create(ctx, storage.AccessKey{Key: "TES-USER-0001", Role: "public_relations_lead", Username: "Lead"})
	require.NoError(t, err)

	user, err := store.Users().Create(ctx, storage.User{KeyID: key.ID, PasswordHash: "hash", Role: key.Role})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)

	got, err := store.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.KeyID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, "public_relations_lead", got.Role)

	byKey, err := store.Users().GetByKeyID(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byKey.ID)

	deleted, err := store.Users().Delete(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.Users().GetByID(ctx, user.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = store.Users().GetByKeyID(ctx, key.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	deleted, err = store.Users().Delete(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func testUserOnePerKey(t *testing.T, store storage.Store) {
	ctx := context.Background()

	key, err := store.AccessKeys().Create(ctx, storage.AccessKey{Key: "TES-ONCE-0001", Role: "public_relations", Username: "Once"})
	require.NoError(t, err)

	_, err = store.Users().Create(ctx, storage.User{KeyID: key.ID, PasswordHash: "a", Role: key.Role})
	require.NoError(t, err)

	_, err = store.Users().Create(ctx, storage.User{KeyID: key.ID, PasswordHash: "b", Role: key.Role})
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)
}

func testPhotoSections(t *testing.T, store storage.Store) {
	ctx := context.Background()
	repo := store.PhotoSections()

	first, err := repo.Create(ctx, storage.PhotoSection{
		Title:       "Briefing",
		Description: "Morning briefing",
		Photo:       "https://example.com/a.jpg",
		Category:    "Operations",
		CreatedBy:   "user-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := repo.Create(ctx, storage.PhotoSection{
		Title:       "Range day",
		Description: "Qualification",
		Photo:       "data:image/png;base64,AAAA",
		Category:    "Training",
		CreatedBy:   "user-2",
		CreatedAt:   first.CreatedAt.Add(time.Second),
	})
	require.NoError(t, err)

	sections, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, first.ID, sections[0].ID)
	assert.Equal(t, second.ID, sections[1].ID)

	deleted, err := repo.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	sections, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, second.ID, sections[0].ID)
}

func testPageContentUpsert(t *testing.T, store storage.Store) {
	ctx := context.Background()
	repo := store.PageContent()

	first, err := repo.Upsert(ctx, storage.PageContent{Page: "home", Section: "hero", Key: "title", Content: "Welcome", UpdatedBy: "user-1"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := repo.Upsert(ctx, storage.PageContent{Page: "home", Section: "hero", Key: "title", Content: "Welcome back", UpdatedBy: "user-2"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "upsert on (page, key) keeps the id")
	assert.Equal(t, "Welcome back", second.Content)
	assert.Equal(t, "user-2", second.UpdatedBy)

	_, err = repo.Upsert(ctx, storage.PageContent{Page: "faq", Section: "intro", Key: "title", Content: "FAQ", UpdatedBy: "user-1"})
	require.NoError(t, err)

	got, err := repo.Get(ctx, "home", "title")
	require.NoError(t, err)
	assert.Equal(t, "Welcome back", got.Content)

	_, err = repo.Get(ctx, "home", "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	home, err := repo.ListByPage(ctx, "home")
	require.NoError(t, err)
	assert.Len(t, home, 1)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testWithTxCommits(t *testing.T, store storage.Store) {
	ctx := context.Background()

	err := store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		key, err := tx.AccessKeys().Create(ctx, storage.AccessKey{Key: "TES-TXOK-0001", Role: "public_relations", Username: "Tx"})
		if err != nil {
			return err
		}
		locked, err := tx.AccessKeys().GetByID(ctx, key.ID)
		if err != nil {
			return err
		}
		user, err := tx.Users().Create(ctx, storage.User{KeyID: locked.ID, PasswordHash: "h", Role: locked.Role})
		if err != nil {
			return err
		}
		used := true
		_, err = tx.AccessKeys().Update(ctx, key.ID, storage.AccessKeyUpdate{Used: &used, AssignedTo: &user.ID})
		return err
	})
	require.NoError(t, err)

	key, err := store.AccessKeys().GetByKey(ctx, "TES-TXOK-0001")
	require.NoError(t, err)
	assert.True(t, key.Used)
	require.NotNil(t, key.AssignedTo)

	_, err = store.Users().GetByID(ctx, *key.AssignedTo)
	assert.NoError(t, err)
}

func testWithTxRollsBack(t *testing.T, store storage.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if _, err := tx.AccessKeys().Create(ctx, storage.AccessKey{Key: "TES-TXNO-0001", Role: "public_relations", Username: "Tx"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.AccessKeys().GetByKey(ctx, "TES-TXNO-0001")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	n, err := store.AccessKeys().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
