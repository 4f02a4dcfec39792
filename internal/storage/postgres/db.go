// Package postgres implements storage.Store on PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tes-agency/portal/internal/metrics"
	"github.com/tes-agency/portal/internal/storage"
)

// Store is a PostgreSQL-backed storage.Store. Inside WithTx every repository
// it hands out shares the transaction.
type Store struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

// Open connects to databaseURL and verifies the connection. maxConns <= 0
// keeps the pgxpool default.
func Open(ctx context.Context, databaseURL string, maxConns int) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres store: pool is nil")
	}
	return &Store{pool: pool}, nil
}

func (s *Store) AccessKeys() storage.AccessKeyRepository {
	return &AccessKeyRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) Users() storage.UserRepository {
	return &UserRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) PhotoSections() storage.PhotoSectionRepository {
	return &PhotoSectionRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) PageContent() storage.PageContentRepository {
	return &PageContentRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, storage.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	wrapped := &Store{pool: s.pool, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		return storage.RollbackError(err, tx.Rollback(ctx))
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// PoolStats reports connection pool usage for the metrics collector.
func (s *Store) PoolStats() metrics.PoolStats {
	stat := s.pool.Stat()
	return metrics.PoolStats{
		Open:    int(stat.TotalConns()),
		InUse:   int(stat.AcquiredConns()),
		Idle:    int(stat.IdleConns()),
		MaxOpen: int(stat.MaxConns()),
	}
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func pick(pool *pgxpool.Pool, tx pgx.Tx) queryer {
	if tx != nil {
		return tx
	}
	return pool
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// mapWriteError turns constraint violations into storage sentinels.
func mapWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return storage.ErrConflict
	case isForeignKeyViolation(err):
		return storage.ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func mapReadError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ storage.Store = (*Store)(nil)
