package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/tes-agency/portal/internal/storage"
)

type AccessKeyRepository struct {
	store *Store
}

func (r *AccessKeyRepository) Create(ctx context.Context, key storage.AccessKey) (storage.AccessKey, error) {
	err := r.store.write(ctx, func() error {
		for _, existing := range r.store.state.accessKeys {
			if existing.value.Key == key.Key {
				return storage.ErrConflict
			}
		}
		if key.ID == "" {
			key.ID = newID()
		}
		if _, ok := r.store.state.accessKeys[key.ID]; ok {
			return storage.ErrConflict
		}
		if key.CreatedAt.IsZero() {
			key.CreatedAt = r.store.now()
		}
		r.store.state.accessKeys[key.ID] = record[storage.AccessKey]{value: key, seq: r.store.nextSeq()}
		return nil
	})
	if err != nil {
		return storage.AccessKey{}, err
	}
	return key, nil
}

func (r *AccessKeyRepository) GetByKey(ctx context.Context, token string) (storage.AccessKey, error) {
	var found storage.AccessKey
	err := r.store.read(ctx, func() error {
		for _, rec := range r.store.state.accessKeys {
			if rec.value.Key == token {
				found = rec.value
				return nil
			}
		}
		return storage.ErrNotFound
	})
	return found, err
}

func (r *AccessKeyRepository) GetByID(ctx context.Context, id string) (storage.AccessKey, error) {
	var found storage.AccessKey
	err := r.store.read(ctx, func() error {
		rec, ok := r.store.state.accessKeys[id]
		if !ok {
			return storage.ErrNotFound
		}
		found = rec.value
		return nil
	})
	return found, err
}

func (r *AccessKeyRepository) Update(ctx context.Context, id string, update storage.AccessKeyUpdate) (storage.AccessKey, error) {
	var updated storage.AccessKey
	err := r.store.write(ctx, func() error {
		rec, ok := r.store.state.accessKeys[id]
		if !ok {
			return storage.ErrNotFound
		}
		rec.value = update.Apply(rec.value)
		r.store.state.accessKeys[id] = rec
		updated = rec.value
		return nil
	})
	return updated, err
}

func (r *AccessKeyRepository) Delete(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := r.store.write(ctx, func() error {
		_, existed = r.store.state.accessKeys[id]
		delete(r.store.state.accessKeys, id)
		return nil
	})
	return existed, err
}

func (r *AccessKeyRepository) List(ctx context.Context) ([]storage.AccessKey, error) {
	var keys []storage.AccessKey
	err := r.store.read(ctx, func() error {
		keys = sorted(r.store.state.accessKeys, nil)
		return nil
	})
	return keys, err
}

func (r *AccessKeyRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.store.read(ctx, func() error {
		n = len(r.store.state.accessKeys)
		return nil
	})
	return n, err
}

type UserRepository struct {
	store *Store
}

func (r *UserRepository) Create(ctx context.Context, user storage.User) (storage.User, error) {
	err := r.store.write(ctx, func() error {
		for _, existing := range r.store.state.users {
			if existing.value.KeyID == user.KeyID {
				return storage.ErrConflict
			}
		}
		if user.ID == "" {
			user.ID = newID()
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = r.store.now()
		}
		r.store.state.users[user.ID] = record[storage.User]{value: user, seq: r.store.nextSeq()}
		return nil
	})
	if err != nil {
		return storage.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (storage.User, error) {
	var found storage.User
	err := r.store.read(ctx, func() error {
		rec, ok := r.store.state.users[id]
		if !ok {
			return storage.ErrNotFound
		}
		found = rec.value
		return nil
	})
	return found, err
}

func (r *UserRepository) GetByKeyID(ctx context.Context, keyID string) (storage.User, error) {
	var found storage.User
	err := r.store.read(ctx, func() error {
		for _, rec := range r.store.state.users {
			if rec.value.KeyID == keyID {
				found = rec.value
				return nil
			}
		}
		return storage.ErrNotFound
	})
	return found, err
}

func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := r.store.write(ctx, func() error {
		_, existed = r.store.state.users[id]
		delete(r.store.state.users, id)
		return nil
	})
	return existed, err
}

type PhotoSectionRepository struct {
	store *Store
}

func (r *PhotoSectionRepository) Create(ctx context.Context, section storage.PhotoSection) (storage.PhotoSection, error) {
	err := r.store.write(ctx, func() error {
		if section.ID == "" {
			section.ID = newID()
		}
		if section.CreatedAt.IsZero() {
			section.CreatedAt = r.store.now()
		}
		r.store.state.photoSections[section.ID] = record[storage.PhotoSection]{value: section, seq: r.store.nextSeq()}
		return nil
	})
	if err != nil {
		return storage.PhotoSection{}, err
	}
	return section, nil
}

func (r *PhotoSectionRepository) List(ctx context.Context) ([]storage.PhotoSection, error) {
	var sections []storage.PhotoSection
	err := r.store.read(ctx, func() error {
		sections = sorted(r.store.state.photoSections, nil)
		return nil
	})
	return sections, err
}

func (r *PhotoSectionRepository) Delete(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := r.store.write(ctx, func() error {
		_, existed = r.store.state.photoSections[id]
		delete(r.store.state.photoSections, id)
		return nil
	})
	return existed, err
}

type PageContentRepository struct {
	store *Store
}

func (r *PageContentRepository) Upsert(ctx context.Context, content storage.PageContent) (storage.PageContent, error) {
	err := r.store.write(ctx, func() error {
		for id, rec := range r.store.state.pageContent {
			if rec.value.Page == content.Page && rec.value.Key == content.Key {
				content.ID = id
				if content.UpdatedAt.IsZero() {
					content.UpdatedAt = r.store.now()
				}
				rec.value = content
				r.store.state.pageContent[id] = rec
				return nil
			}
		}
		if content.ID == "" {
			content.ID = newID()
		}
		if content.UpdatedAt.IsZero() {
			content.UpdatedAt = r.store.now()
		}
		r.store.state.pageContent[content.ID] = record[storage.PageContent]{value: content, seq: r.store.nextSeq()}
		return nil
	})
	if err != nil {
		return storage.PageContent{}, err
	}
	return content, nil
}

func (r *PageContentRepository) Get(ctx context.Context, page, key string) (storage.PageContent, error) {
	var found storage.PageContent
	err := r.store.read(ctx, func() error {
		for _, rec := range r.store.state.pageContent {
			if rec.value.Page == page && rec.value.Key == key {
				found = rec.value
				return nil
			}
		}
		return storage.ErrNotFound
	})
	return found, err
}

func (r *PageContentRepository) ListByPage(ctx context.Context, page string) ([]storage.PageContent, error) {
	var entries []storage.PageContent
	err := r.store.read(ctx, func() error {
		entries = sorted(r.store.state.pageContent, func(pc storage.PageContent) bool { return pc.Page == page })
		sortContent(entries)
		return nil
	})
	return entries, err
}

func (r *PageContentRepository) List(ctx context.Context) ([]storage.PageContent, error) {
	var entries []storage.PageContent
	err := r.store.read(ctx, func() error {
		entries = sorted(r.store.state.pageContent, nil)
		sortContent(entries)
		return nil
	})
	return entries, err
}

// sortContent orders entries by page, section and key, matching the SQL
// backends.
func sortContent(entries []storage.PageContent) {
	slices.SortStableFunc(entries, func(a, b storage.PageContent) int {
		return cmp.Or(
			strings.Compare(a.Page, b.Page),
			strings.Compare(a.Section, b.Section),
			strings.Compare(a.Key, b.Key),
		)
	})
}
