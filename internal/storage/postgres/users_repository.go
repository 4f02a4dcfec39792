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

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const userColumns = `id, key_id, password_hash, role, created_at`

func (r *UserRepository) Create(ctx context.Context, user storage.User) (storage.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	row := pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO users (id, key_id, password_hash, role, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+userColumns,
		user.ID, user.KeyID, user.PasswordHash, user.Role, user.CreatedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		return storage.User{}, mapWriteError("create user", err)
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (storage.User, error) {
	user, err := scanUser(pick(r.pool, r.tx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return storage.User{}, mapReadError("get user", err)
	}
	return user, nil
}

func (r *UserRepository) GetByKeyID(ctx context.Context, keyID string) (storage.User, error) {
	user, err := scanUser(pick(r.pool, r.tx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE key_id = $1`, keyID))
	if err != nil {
		return storage.User{}, mapReadError("get user by key", err)
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (storage.User, error) {
	var user storage.User
	err := row.Scan(&user.ID, &user.KeyID, &user.PasswordHash, &user.Role, &user.CreatedAt)
	user.CreatedAt = user.CreatedAt.UTC()
	return user, err
}
