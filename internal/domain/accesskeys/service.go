// Package accesskeys manages single-use invitation tokens ("access keys").
//
// Registry operations (CreateAccessKey, GetAccessKey, GetAccessKeyByID,
// UpdateAccessKey, DeleteAccessKey, ListAccessKeys) carry no policy and are
// used by the user registry, the CLI and bootstrap. Caller-facing operations
// (Issue, List, Revoke) apply the role policy from package auth first, then
// audit the change and queue a webhook notification.
package accesskeys

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tes-agency/portal/internal/audit"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/metrics"
	"github.com/tes-agency/portal/internal/notify"
	"github.com/tes-agency/portal/internal/storage"
)

var (
	ErrNotFound = errors.New("access key not found")
	// ErrForbidden is returned when the actor's role does not allow the action.
	ErrForbidden = errors.New("forbidden")
	// ErrRoleNotAssignable is a denial for an actor that may issue some, but
	// not the requested, roles.
	ErrRoleNotAssignable = fmt.Errorf("%w: role not assignable by actor", ErrForbidden)
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidInput      = errors.New("invalid input")
	// ErrTokenSpaceExhausted is returned when even the long fallback token
	// collides with an existing key.
	ErrTokenSpaceExhausted = errors.New("could not generate a unique access key")
)

const DefaultMaxAttempts = 10

var errCollision = errors.New("token collision")

type Config struct {
	Prefix      string
	MaxAttempts int
}

type Service struct {
	store       storage.Store
	tokens      *Generator
	maxAttempts int
	notifier    notify.Notifier
	audit       *audit.Logger
	logger      zerolog.Logger
}

func NewService(store storage.Store, cfg Config, notifier notify.Notifier, auditLogger *audit.Logger, logger zerolog.Logger) *Service {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:       store,
		tokens:      NewGenerator(cfg.Prefix),
		maxAttempts: cfg.MaxAttempts,
		notifier:    notifier,
		audit:       auditLogger,
		logger:      logger.With().Str("component", "accesskeys").Logger(),
	}
}

// CreateAccessKey persists a new unused key for role with a freshly generated
// token. role must already be permitted by the caller.
func (s *Service) CreateAccessKey(ctx context.Context, role auth.Role, username string) (storage.AccessKey, error) {
	if !role.IsAssignable() {
		return storage.AccessKey{}, ErrInvalidRole
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return storage.AccessKey{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		key, err := s.tryCreate(ctx, ShortSegments, role, username)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, errCollision) {
			return storage.AccessKey{}, err
		}
		s.logger.Debug().Int("attempt", attempt).Msg("access key token collision")
	}

	s.logger.Warn().Int("attempts", s.maxAttempts).Msg("short access key tokens exhausted, using long token")
	key, err := s.tryCreate(ctx, LongSegments, role, username)
	if errors.Is(err, errCollision) {
		return storage.AccessKey{}, ErrTokenSpaceExhausted
	}
	return key, err
}

func (s *Service) tryCreate(ctx context.Context, segments int, role auth.Role, username string) (storage.AccessKey, error) {
	token, err := s.tokens.Token(segments)
	if err != nil {
		return storage.AccessKey{}, err
	}

	_, err = s.store.AccessKeys().GetByKey(ctx, token)
	switch {
	case err == nil:
		metrics.AccessKeyCollisions.Inc()
		return storage.AccessKey{}, errCollision
	case !errors.Is(err, storage.ErrNotFound):
		return storage.AccessKey{}, fmt.Errorf("check token: %w", err)
	}

	key, err := s.store.AccessKeys().Create(ctx, storage.AccessKey{
		Key:      token,
		Role:     string(role),
		Username: username,
	})
	if errors.Is(err, storage.ErrConflict) {
		metrics.AccessKeyCollisions.Inc()
		return storage.AccessKey{}, errCollision
	}
	if err != nil {
		return storage.AccessKey{}, fmt.Errorf("create access key: %w", err)
	}
	return key, nil
}

// GetAccessKey looks a key up by the token users type in.
func (s *Service) GetAccessKey(ctx context.Context, token string) (storage.AccessKey, error) {
	key, err := s.store.AccessKeys().GetByKey(ctx, strings.TrimSpace(token))
	return key, mapStoreError(err, "get access key")
}

func (s *Service) GetAccessKeyByID(ctx context.Context, id string) (storage.AccessKey, error) {
	key, err := s.store.AccessKeys().GetByID(ctx, id)
	return key, mapStoreError(err, "get access key by id")
}

func (s *Service) UpdateAccessKey(ctx context.Context, id string, update storage.AccessKeyUpdate) (storage.AccessKey, error) {
	key, err := s.store.AccessKeys().Update(ctx, id, update)
	return key, mapStoreError(err, "update access key")
}

// DeleteAccessKey removes the key record only and reports whether it existed.
// Use Revoke to also remove the registered user.
func (s *Service) DeleteAccessKey(ctx context.Context, id string) (bool, error) {
	ok, err := s.store.AccessKeys().Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete access key: %w", err)
	}
	return ok, nil
}

func (s *Service) ListAccessKeys(ctx context.Context) ([]storage.AccessKey, error) {
	keys, err := s.store.AccessKeys().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list access keys: %w", err)
	}
	return keys, nil
}

// Issue creates a key for role on behalf of actor.
//
// An unparseable role is ErrInvalidRole for actors that may assign every
// role, and ErrRoleNotAssignable for everyone else, so a lead asking for
// anything but public_relations is always denied.
func (s *Service) Issue(ctx context.Context, actor auth.Actor, role, username string) (storage.AccessKey, error) {
	if strings.TrimSpace(username) == "" {
		return storage.AccessKey{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	target, err := auth.ParseRole(role)
	if err != nil || !target.IsAssignable() {
		if auth.CanAssignAll(actor.Role) {
			return storage.AccessKey{}, ErrInvalidRole
		}
		return storage.AccessKey{}, s.deny(ctx, actor, "access_key.create", role)
	}
	if !auth.CanPerform(actor.Role, auth.ActionCreateKey, target) {
		return storage.AccessKey{}, s.deny(ctx, actor, "access_key.create", role)
	}

	key, err := s.CreateAccessKey(ctx, target, username)
	if err != nil {
		return storage.AccessKey{}, err
	}

	metrics.AccessKeysIssued.WithLabelValues(key.Role).Inc()
	s.audit.LogSuccess(ctx, "access_key.create", actor.UserID, "access_key", key.ID, map[string]string{
		"role":     key.Role,
		"username": key.Username,
	})
	s.logger.Info().Str("key_id", key.ID).Str("role", key.Role).Str("actor", actor.UserID).Msg("access key issued")
	s.notifier.Notify(notify.KeyCreated(key.Username, target.DisplayName(), key.Key))
	return key, nil
}

func (s *Service) deny(ctx context.Context, actor auth.Actor, action, role string) error {
	s.audit.LogFailure(ctx, action, actor.UserID, map[string]string{
		"actor_role":  string(actor.Role),
		"target_role": role,
	})
	if actor.Role == auth.RolePublicRelationsLead {
		return ErrRoleNotAssignable
	}
	return ErrForbidden
}

// List returns the keys actor may see: every key for directors, only
// public_relations keys for leads.
func (s *Service) List(ctx context.Context, actor auth.Actor) ([]storage.AccessKey, error) {
	if !auth.CanPerform(actor.Role, auth.ActionListKeys, auth.RoleNone) {
		return nil, ErrForbidden
	}
	keys, err := s.ListAccessKeys(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]storage.AccessKey, 0, len(keys))
	for _, key := range keys {
		if auth.CanPerform(actor.Role, auth.ActionViewKey, auth.NormalizeRole(key.Role)) {
			visible = append(visible, key)
		}
	}
	return visible, nil
}

// Revoke deletes the key and the user registered with it, if any, in one
// transaction.
func (s *Service) Revoke(ctx context.Context, actor auth.Actor, id string) error {
	if !auth.CanPerform(actor.Role, auth.ActionDeleteKey, auth.RoleNone) {
		s.audit.LogFailure(ctx, "access_key.delete", actor.UserID, map[string]string{"key_id": id})
		return ErrForbidden
	}

	var (
		revoked storage.AccessKey
		hadUser bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		key, err := tx.AccessKeys().GetByID(ctx, id)
		if err != nil {
			return mapStoreError(err, "load access key")
		}
		if key.AssignedTo != nil {
			deleted, err := tx.Users().Delete(ctx, *key.AssignedTo)
			if err != nil {
				return fmt.Errorf("delete assigned user: %w", err)
			}
			hadUser = deleted
		}
		ok, err := tx.AccessKeys().Delete(ctx, id)
		if err != nil {
			return fmt.Errorf("delete access key: %w", err)
		}
		if !ok {
			return ErrNotFound
		}
		revoked = key
		return nil
	})
	if err != nil {
		return err
	}

	metrics.AccessKeysRevoked.Inc()
	s.audit.LogSuccess(ctx, "access_key.delete", actor.UserID, "access_key", revoked.ID, map[string]string{
		"role":         revoked.Role,
		"username":     revoked.Username,
		"user_removed": fmt.Sprint(hadUser),
	})
	s.logger.Info().Str("key_id", revoked.ID).Bool("user_removed", hadUser).Str("actor", actor.UserID).Msg("access key revoked")
	s.notifier.Notify(notify.KeyDeleted(revoked.Username, auth.NormalizeRole(revoked.Role).DisplayName(), hadUser))
	return nil
}

// Bootstrap seeds a directors_office key when the registry is empty. A
// non-empty fixedToken is stored verbatim. It reports whether a key was
// created.
func (s *Service) Bootstrap(ctx context.Context, username, fixedToken string) (storage.AccessKey, bool, error) {
	count, err := s.store.AccessKeys().Count(ctx)
	if err != nil {
		return storage.AccessKey{}, false, fmt.Errorf("count access keys: %w", err)
	}
	if count > 0 {
		return storage.AccessKey{}, false, nil
	}

	var key storage.AccessKey
	if token := strings.TrimSpace(fixedToken); token != "" {
		username = strings.TrimSpace(username)
		if username == "" {
			return storage.AccessKey{}, false, fmt.Errorf("%w: username is required", ErrInvalidInput)
		}
		key, err = s.store.AccessKeys().Create(ctx, storage.AccessKey{
			Key:      token,
			Role:     string(auth.RoleDirectorsOffice),
			Username: username,
		})
		if err != nil {
			return storage.AccessKey{}, false, fmt.Errorf("create bootstrap key: %w", err)
		}
	} else {
		key, err = s.CreateAccessKey(ctx, auth.RoleDirectorsOffice, username)
		if err != nil {
			return storage.AccessKey{}, false, err
		}
	}

	metrics.AccessKeysIssued.WithLabelValues(key.Role).Inc()
	s.audit.LogSuccess(ctx, "access_key.bootstrap", "system", "access_key", key.ID, map[string]string{
		"username": key.Username,
	})
	return key, true, nil
}

func mapStoreError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
