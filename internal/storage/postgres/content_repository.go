package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tes-agency/portal/internal/storage"
)

type PhotoSectionRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const photoSectionColumns = `id, title, description, photo, category, created_by, created_at`

func (r *PhotoSectionRepository) Create(ctx context.Context, section storage.PhotoSection) (storage.PhotoSection, error) {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = time.Now().UTC()
	}

	row := pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO photo_sections (id, title, description, photo, category, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+photoSectionColumns,
		section.ID, section.Title, section.Description, section.Photo, section.Category, section.CreatedBy, section.CreatedAt,
	)
	created, err := scanPhotoSection(row)
	if err != nil {
		return storage.PhotoSection{}, mapWriteError("create photo section", err)
	}
	return created, nil
}

func (r *PhotoSectionRepository) List(ctx context.Context) ([]storage.PhotoSection, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `SELECT `+photoSectionColumns+` FROM photo_sections ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list photo sections: %w", err)
	}
	defer rows.Close()

	sections := []storage.PhotoSection{}
	for rows.Next() {
		section, err := scanPhotoSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo section: %w", err)
		}
		sections = append(sections, section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list photo sections: %w", err)
	}
	return sections, nil
}

func (r *PhotoSectionRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM photo_sections WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete photo section: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanPhotoSection(row pgx.Row) (storage.PhotoSection, error) {
	var s storage.PhotoSection
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Photo, &s.Category, &s.CreatedBy, &s.CreatedAt)
	s.CreatedAt = s.CreatedAt.UTC()
	return s, err
}

type PageContentRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const pageContentColumns = `id, page, section, key, content, updated_by, updated_at`

func (r *PageContentRepository) Upsert(ctx context.Context, content storage.PageContent) (storage.PageContent, error) {
	if content.ID == "" {
		content.ID = uuid.NewString()
	}
	if content.UpdatedAt.IsZero() {
		content.UpdatedAt = time.Now().UTC()
	}

	row := pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO page_content (id, page, section, key, content, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (page, key) DO UPDATE
   SET section = EXCLUDED.section,
       content = EXCLUDED.content,
       updated_by = EXCLUDED.updated_by,
       updated_at = EXCLUDED.updated_at
RETURNING `+pageContentColumns,
		content.ID, content.Page, content.Section, content.Key, content.Content, content.UpdatedBy, content.UpdatedAt,
	)
	saved, err := scanPageContent(row)
	if err != nil {
		return storage.PageContent{}, mapWriteError("upsert page content", err)
	}
	return saved, nil
}

func (r *PageContentRepository) Get(ctx context.Context, page, key string) (storage.PageContent, error) {
	row := pick(r.pool, r.tx).QueryRow(ctx, `SELECT `+pageContentColumns+` FROM page_content WHERE page = $1 AND key = $2`, page, key)
	content, err := scanPageContent(row)
	if err != nil {
		return storage.PageContent{}, mapReadError("get page content", err)
	}
	return content, nil
}

func (r *PageContentRepository) ListByPage(ctx context.Context, page string) ([]storage.PageContent, error) {
	return r.list(ctx, `SELECT `+pageContentColumns+` FROM page_content WHERE page = $1 ORDER BY section, key`, page)
}

func (r *PageContentRepository) List(ctx context.Context) ([]storage.PageContent, error) {
	return r.list(ctx, `SELECT `+pageContentColumns+` FROM page_content ORDER BY page, section, key`)
}

func (r *PageContentRepository) list(ctx context.Context, query string, args ...any) ([]storage.PageContent, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list page content: %w", err)
	}
	defer rows.Close()

	items := []storage.PageContent{}
	for rows.Next() {
		item, err := scanPageContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page content: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list page content: %w", err)
	}
	return items, nil
}

func scanPageContent(row pgx.Row) (storage.PageContent, error) {
	var c storage.PageContent
	err := row.Scan(&c.ID, &c.Page, &c.Section, &c.Key, &c.Content, &c.UpdatedBy, &c.UpdatedAt)
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, err
}
