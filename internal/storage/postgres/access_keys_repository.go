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

type AccessKeyRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const accessKeyColumns = `id, key, role, used, assigned_to, username, created_at`

func (r *AccessKeyRepository) Create(ctx context.Context, key storage.AccessKey) (storage.AccessKey, error) {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	row := pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO access_keys (id, key, role, used, assigned_to, username, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+accessKeyColumns,
		key.ID, key.Key, key.Role, key.Used, key.AssignedTo, key.Username, key.CreatedAt,
	)
	created, err := scanAccessKey(row)
	if err != nil {
		return storage.AccessKey{}, mapWriteError("create access key", err)
	}
	return created, nil
}

func (r *AccessKeyRepository) GetByKey(ctx context.Context, token string) (storage.AccessKey, error) {
	row := pick(r.pool, r.tx).QueryRow(ctx, `SELECT `+accessKeyColumns+` FROM access_keys WHERE key = $1`, token)
	key, err := scanAccessKey(row)
	if err != nil {
		return storage.AccessKey{}, mapReadError("get access key by token", err)
	}
	return key, nil
}

func (r *AccessKeyRepository) GetByID(ctx context.Context, id string) (storage.AccessKey, error) {
	query := `SELECT ` + accessKeyColumns + ` FROM access_keys WHERE id = $1`
	if r.tx != nil {
		query += ` FOR UPDATE`
	}
	key, err := scanAccessKey(pick(r.pool, r.tx).QueryRow(ctx, query, id))
	if err != nil {
		return storage.AccessKey{}, mapReadError("get access key", err)
	}
	return key, nil
}

func (r *AccessKeyRepository) Update(ctx context.Context, id string, update storage.AccessKeyUpdate) (storage.AccessKey, error) {
	row := pick(r.pool, r.tx).QueryRow(ctx, `
UPDATE access_keys
   SET used = COALESCE($2::boolean, used),
       assigned_to = COALESCE($3::text, assigned_to),
       username = COALESCE($4::text, username)
 WHERE id = $1
RETURNING `+accessKeyColumns,
		id, update.Used, update.AssignedTo, update.Username,
	)
	key, err := scanAccessKey(row)
	if err != nil {
		return storage.AccessKey{}, mapReadError("update access key", err)
	}
	return key, nil
}

func (r *AccessKeyRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM access_keys WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete access key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *AccessKeyRepository) List(ctx context.Context) ([]storage.AccessKey, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `SELECT `+accessKeyColumns+` FROM access_keys ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list access keys: %w", err)
	}
	defer rows.Close()

	keys := []storage.AccessKey{}
	for rows.Next() {
		key, err := scanAccessKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list access keys: %w", err)
	}
	return keys, nil
}

func (r *AccessKeyRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := pick(r.pool, r.tx).QueryRow(ctx, `SELECT count(*) FROM access_keys`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count access keys: %w", err)
	}
	return n, nil
}

func scanAccessKey(row pgx.Row) (storage.AccessKey, error) {
	var key storage.AccessKey
	err := row.Scan(&key.ID, &key.Key, &key.Role, &key.Used, &key.AssignedTo, &key.Username, &key.CreatedAt)
	key.CreatedAt = key.CreatedAt.UTC()
	return key, err
}
