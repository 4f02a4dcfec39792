package storage

import (
	"context"
	"errors"
	"fmt"
)

// RollbackError combines the error that aborted a transaction with a failed
// rollback. errors.Is still matches the original error.
func RollbackError(err, rbErr error) error {
	if rbErr == nil {
		return err
	}
	return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
}

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

// Store groups data access by record type. Every backend (memory, postgres,
// sqlite) satisfies the same contract.
type Store interface {
	AccessKeys() AccessKeyRepository
	Users() UserRepository
	PhotoSections() PhotoSectionRepository
	PageContent() PageContentRepository

	// WithTx runs fn against a Store whose operations commit or roll back
	// together. Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error

	Ping(ctx context.Context) error
	Close() error
}

type AccessKeyRepository interface {
	// Create persists key. An empty ID is assigned by the store.
	// Returns ErrConflict when key.Key is already taken.
	Create(ctx context.Context, key AccessKey) (AccessKey, error)
	GetByKey(ctx context.Context, token string) (AccessKey, error)
	// GetByID locks the row for the rest of the transaction when called
	// inside WithTx on a backend that supports row locks.
	GetByID(ctx context.Context, id string) (AccessKey, error)
	Update(ctx context.Context, id string, update AccessKeyUpdate) (AccessKey, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]AccessKey, error)
	Count(ctx context.Context) (int, error)
}

type UserRepository interface {
	// Create returns ErrConflict when a user already exists for user.KeyID.
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByKeyID(ctx context.Context, keyID string) (User, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PhotoSectionRepository interface {
	Create(ctx context.Context, section PhotoSection) (PhotoSection, error)
	List(ctx context.Context) ([]PhotoSection, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PageContentRepository interface {
	// Upsert inserts or replaces the entry keyed by (Page, Key), keeping the
	// existing ID on replace.
	Upsert(ctx context.Context, content PageContent) (PageContent, error)
	Get(ctx context.Context, page, key string) (PageContent, error)
	ListByPage(ctx context.Context, page string) ([]PageContent, error)
	List(ctx context.Context) ([]PageContent, error)
}
