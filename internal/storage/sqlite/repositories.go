package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tes-agency/portal/internal/storage"
)

type AccessKeyRepository struct {
	q queryer
}

const accessKeyColumns = `id, key, role, used, assigned_to, username, created_at`

func (r *AccessKeyRepository) Create(ctx context.Context, key storage.AccessKey) (storage.AccessKey, error) {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	row := r.q.QueryRowContext(ctx, `
INSERT INTO access_keys (id, key, role, used, assigned_to, username, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING `+accessKeyColumns,
		key.ID, key.Key, key.Role, key.Used, key.AssignedTo, key.Username, toMillis(key.CreatedAt),
	)
	created, err := scanAccessKey(row)
	if err != nil {
		return storage.AccessKey{}, mapWriteError("create access key", err)
	}
	return created, nil
}

func (r *AccessKeyRepository) GetByKey(ctx context.Context, token string) (storage.AccessKey, error) {
	key, err := scanAccessKey(r.q.QueryRowContext(ctx, `SELECT `+accessKeyColumns+` FROM access_keys WHERE key = ?`, token))
	if err != nil {
		return storage.AccessKey{}, mapReadError("get access key by token", err)
	}
	return key, nil
}

// GetByID needs no row lock: the single connection already serializes
// transactions.
func (r *AccessKeyRepository) GetByID(ctx context.Context, id string) (storage.AccessKey, error) {
	key, err := scanAccessKey(r.q.QueryRowContext(ctx, `SELECT `+accessKeyColumns+` FROM access_keys WHERE id = ?`, id))
	if err != nil {
		return storage.AccessKey{}, mapReadError("get access key", err)
	}
	return key, nil
}

func (r *AccessKeyRepository) Update(ctx context.Context, id string, update storage.AccessKeyUpdate) (storage.AccessKey, error) {
	row := r.q.QueryRowContext(ctx, `
UPDATE access_keys
   SET used = COALESCE(?, used),
       assigned_to = COALESCE(?, assigned_to),
       username = COALESCE(?, username)
 WHERE id = ?
RETURNING `+accessKeyColumns,
		update.Used, update.AssignedTo, update.Username, id,
	)
	key, err := scanAccessKey(row)
	if err != nil {
		return storage.AccessKey{}, mapReadError("update access key", err)
	}
	return key, nil
}

func (r *AccessKeyRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM access_keys WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete access key: %w", err)
	}
	return rowsAffected(res)
}

func (r *AccessKeyRepository) List(ctx context.Context) ([]storage.AccessKey, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+accessKeyColumns+` FROM access_keys ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list access keys: %w", err)
	}
	return collect(rows, scanAccessKey)
}

func (r *AccessKeyRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM access_keys`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count access keys: %w", err)
	}
	return n, nil
}

func scanAccessKey(row scanner) (storage.AccessKey, error) {
	var (
		key     storage.AccessKey
		created int64
	)
	err := row.Scan(&key.ID, &key.Key, &key.Role, &key.Used, &key.AssignedTo, &key.Username, &created)
	key.CreatedAt = fromMillis(created)
	return key, err
}

type UserRepository struct {
	q queryer
}

const userColumns = `id, key_id, password_hash, role, created_at`

func (r *UserRepository) Create(ctx context.Context, user storage.User) (storage.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	row := r.q.QueryRowContext(ctx, `
INSERT INTO users (id, key_id, password_hash, role, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING `+userColumns,
		user.ID, user.KeyID, user.PasswordHash, user.Role, toMillis(user.CreatedAt),
	)
	created, err := scanUser(row)
	if err != nil {
		return storage.User{}, mapWriteError("create user", err)
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (storage.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return storage.User{}, mapReadError("get user", err)
	}
	return user, nil
}

func (r *UserRepository) GetByKeyID(ctx context.Context, keyID string) (storage.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE key_id = ?`, keyID))
	if err != nil {
		return storage.User{}, mapReadError("get user by key", err)
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return rowsAffected(res)
}

func scanUser(row scanner) (storage.User, error) {
	var (
		user    storage.User
		created int64
	)
	err := row.Scan(&user.ID, &user.KeyID, &user.PasswordHash, &user.Role, &created)
	user.CreatedAt = fromMillis(created)
	return user, err
}

type PhotoSectionRepository struct {
	q queryer
}

const photoSectionColumns = `id, title, description, photo, category, created_by, created_at`

func (r *PhotoSectionRepository) Create(ctx context.Context, section storage.PhotoSection) (storage.PhotoSection, error) {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = time.Now().UTC()
	}

	row := r.q.QueryRowContext(ctx, `
INSERT INTO photo_sections (id, title, description, photo, category, created_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING `+photoSectionColumns,
		section.ID, section.Title, section.Description, section.Photo, section.Category, section.CreatedBy, toMillis(section.CreatedAt),
	)
	created, err := scanPhotoSection(row)
	if err != nil {
		return storage.PhotoSection{}, mapWriteError("create photo section", err)
	}
	return created, nil
}

func (r *PhotoSectionRepository) List(ctx context.Context) ([]storage.PhotoSection, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+photoSectionColumns+` FROM photo_sections ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list photo sections: %w", err)
	}
	return collect(rows, scanPhotoSection)
}

func (r *PhotoSectionRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM photo_sections WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete photo section: %w", err)
	}
	return rowsAffected(res)
}

func scanPhotoSection(row scanner) (storage.PhotoSection, error) {
	var (
		s       storage.PhotoSection
		created int64
	)
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Photo, &s.Category, &s.CreatedBy, &created)
	s.CreatedAt = fromMillis(created)
	return s, err
}

type PageContentRepository struct {
	q queryer
}

const pageContentColumns = `id, page, section, key, content, updated_by, updated_at`

func (r *PageContentRepository) Upsert(ctx context.Context, content storage.PageContent) (storage.PageContent, error) {
	if content.ID == "" {
		content.ID = uuid.NewString()
	}
	if content.UpdatedAt.IsZero() {
		content.UpdatedAt = time.Now().UTC()
	}

	row := r.q.QueryRowContext(ctx, `
INSERT INTO page_content (id, page, section, key, content, updated_by, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (page, key) DO UPDATE
   SET section = excluded.section,
       content = excluded.content,
       updated_by = excluded.updated_by,
       updated_at = excluded.updated_at
RETURNING `+pageContentColumns,
		content.ID, content.Page, content.Section, content.Key, content.Content, content.UpdatedBy, toMillis(content.UpdatedAt),
	)
	saved, err := scanPageContent(row)
	if err != nil {
		return storage.PageContent{}, mapWriteError("upsert page content", err)
	}
	return saved, nil
}

func (r *PageContentRepository) Get(ctx context.Context, page, key string) (storage.PageContent, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+pageContentColumns+` FROM page_content WHERE page = ? AND key = ?`, page, key)
	content, err := scanPageContent(row)
	if err != nil {
		return storage.PageContent{}, mapReadError("get page content", err)
	}
	return content, nil
}

func (r *PageContentRepository) ListByPage(ctx context.Context, page string) ([]storage.PageContent, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+pageContentColumns+` FROM page_content WHERE page = ? ORDER BY section, key`, page)
	if err != nil {
		return nil, fmt.Errorf("list page content: %w", err)
	}
	return collect(rows, scanPageContent)
}

func (r *PageContentRepository) List(ctx context.Context) ([]storage.PageContent, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+pageContentColumns+` FROM page_content ORDER BY page, section, key`)
	if err != nil {
		return nil, fmt.Errorf("list page content: %w", err)
	}
	return collect(rows, scanPageContent)
}

func scanPageContent(row scanner) (storage.PageContent, error) {
	var (
		c       storage.PageContent
		updated int64
	)
	err := row.Scan(&c.ID, &c.Page, &c.Section, &c.Key, &c.Content, &c.UpdatedBy, &updated)
	c.UpdatedAt = fromMillis(updated)
	return c, err
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
