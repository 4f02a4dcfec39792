// Package sqlite implements storage.Store on an embedded SQLite file through
// modernc.org/sqlite. It suits single-instance deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tes-agency/portal/internal/metrics"
	"github.com/tes-agency/portal/internal/storage"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store is a SQLite-backed storage.Store. The handle holds a single
// connection, so transactions serialize every other statement.
type Store struct {
	db *sql.DB
	tx *sql.Tx
}

// Open opens (creating if needed) the database file at path and applies the
// embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) AccessKeys() storage.AccessKeyRepository {
	return &AccessKeyRepository{q: s.queryer()}
}

func (s *Store) Users() storage.UserRepository {
	return &UserRepository{q: s.queryer()}
}

func (s *Store) PhotoSections() storage.PhotoSectionRepository {
	return &PhotoSectionRepository{q: s.queryer()}
}

func (s *Store) PageContent() storage.PageContentRepository {
	return &PageContentRepository{q: s.queryer()}
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, storage.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	wrapped := &Store{db: s.db, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		return storage.RollbackError(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) PoolStats() metrics.PoolStats {
	stat := s.db.Stats()
	return metrics.PoolStats{
		Open:    stat.OpenConnections,
		InUse:   stat.InUse,
		Idle:    stat.Idle,
		MaxOpen: stat.MaxOpenConnections,
	}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) queryer() queryer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

type scanner interface {
	Scan(dest ...any) error
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func constraintCode(err error) (int, bool) {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code(), true
	}
	return 0, false
}

func mapWriteError(op string, err error) error {
	if code, ok := constraintCode(err); ok {
		switch code {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return storage.ErrConflict
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return storage.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func mapReadError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ storage.Store = (*Store)(nil)
