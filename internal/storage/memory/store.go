// Package memory implements storage.Store on process-lifetime maps. State is
// lost on restart; it backs deployments without a DATABASE_URL and tests.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tes-agency/portal/internal/storage"
)

type record[T any] struct {
	value T
	seq   uint64
}

type state struct {
	// txMu serializes writers and transactions so a rolled-back transaction
	// never discards a concurrent write.
	txMu sync.Mutex
	mu   sync.RWMutex
	seq  uint64

	accessKeys    map[string]record[storage.AccessKey]
	users         map[string]record[storage.User]
	photoSections map[string]record[storage.PhotoSection]
	pageContent   map[string]record[storage.PageContent]
}

type snapshot struct {
	seq           uint64
	accessKeys    map[string]record[storage.AccessKey]
	users         map[string]record[storage.User]
	photoSections map[string]record[storage.PhotoSection]
	pageContent   map[string]record[storage.PageContent]
}

// Store is an in-memory storage.Store.
type Store struct {
	state *state
	inTx  bool
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		state: &state{
			accessKeys:    make(map[string]record[storage.AccessKey]),
			users:         make(map[string]record[storage.User]),
			photoSections: make(map[string]record[storage.PhotoSection]),
			pageContent:   make(map[string]record[storage.PageContent]),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) AccessKeys() storage.AccessKeyRepository {
	return &AccessKeyRepository{store: s}
}

func (s *Store) Users() storage.UserRepository {
	return &UserRepository{store: s}
}

func (s *Store) PhotoSections() storage.PhotoSectionRepository {
	return &PhotoSectionRepository{store: s}
}

func (s *Store) PageContent() storage.PageContentRepository {
	return &PageContentRepository{store: s}
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, storage.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.state.txMu.Lock()
	defer s.state.txMu.Unlock()

	saved := s.snapshot()
	wrapped := &Store{state: s.state, inTx: true, now: s.now}
	if err := fn(ctx, wrapped); err != nil {
		s.restore(saved)
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) snapshot() snapshot {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return snapshot{
		seq:           s.state.seq,
		accessKeys:    maps.Clone(s.state.accessKeys),
		users:         maps.Clone(s.state.users),
		photoSections: maps.Clone(s.state.photoSections),
		pageContent:   maps.Clone(s.state.pageContent),
	}
}

func (s *Store) restore(saved snapshot) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.seq = saved.seq
	s.state.accessKeys = saved.accessKeys
	s.state.users = saved.users
	s.state.photoSections = saved.photoSections
	s.state.pageContent = saved.pageContent
}

// write runs fn holding the write locks. Inside WithTx the transaction
// already holds txMu.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.state.txMu.Lock()
		defer s.state.txMu.Unlock()
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return fn()
}

func (s *Store) read(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return fn()
}

func (s *Store) nextSeq() uint64 {
	s.state.seq++
	return s.state.seq
}

func sorted[T any](records map[string]record[T], keep func(T) bool) []T {
	list := make([]record[T], 0, len(records))
	for _, rec := range records {
		if keep == nil || keep(rec.value) {
			list = append(list, rec)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })

	out := make([]T, 0, len(list))
	for _, rec := range list {
		out = append(out, rec.value)
	}
	return out
}

func newID() string {
	return uuid.NewString()
}

var _ storage.Store = (*Store)(nil)
