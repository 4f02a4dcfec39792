// Package users handles registration against access keys, login, and
// resolving the acting user for authorization.
//
// Registration redeems an access key: the key must exist, be unused and have
// no user yet. The user, carrying a copy of the key's role, is created and the
// key marked used inside one storage transaction, so two concurrent attempts
// on the same key cannot both succeed.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/tes-agency/portal/internal/audit"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/metrics"
	"github.com/tes-agency/portal/internal/notify"
	"github.com/tes-agency/portal/internal/storage"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidKey is returned when the presented access key does not exist.
	ErrInvalidKey        = errors.New("invalid access key")
	ErrKeyAlreadyUsed    = errors.New("access key already used")
	ErrAlreadyRegistered = errors.New("access key already registered")
	// ErrInvalidCredentials covers every login failure so callers cannot tell
	// an unknown key from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
)

// bcrypt ignores input past 72 bytes
const maxPasswordBytes = 72

// RegisterParams identifies the key by id or, when KeyID is empty, by token.
type RegisterParams struct {
	KeyID    string `json:"keyId" validate:"required_without=Key"`
	Key      string `json:"key" validate:"required_without=KeyID"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Registered is the public view of a newly registered user. Username comes
// from the access key.
type Registered struct {
	ID        string    `json:"id"`
	KeyID     string    `json:"keyId"`
	Role      string    `json:"role"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionUser is returned by Login.
type SessionUser struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Username string `json:"username"`
}

type Session struct {
	User      SessionUser
	Token     string
	ExpiresAt time.Time
}

type Service struct {
	store     storage.Store
	hasher    *auth.PasswordHasher
	sessions  *auth.JWTManager
	notifier  notify.Notifier
	audit     *audit.Logger
	logger    zerolog.Logger
	validator *validator.Validate
	now       func() time.Time
}

func NewService(
	store storage.Store,
	hasher *auth.PasswordHasher,
	sessions *auth.JWTManager,
	notifier notify.Notifier,
	auditLogger *audit.Logger,
	logger zerolog.Logger,
) *Service {
	if hasher == nil {
		hasher = auth.NewPasswordHasher(auth.DefaultBcryptCost)
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:     store,
		hasher:    hasher,
		sessions:  sessions,
		notifier:  notifier,
		audit:     auditLogger,
		logger:    logger.With().Str("component", "users").Logger(),
		validator: validator.New(),
		now:       time.Now,
	}
}

// CreateUser creates a user for an existing key without marking the key used.
// Register is the caller-facing flow.
func (s *Service) CreateUser(ctx context.Context, keyID, password string) (storage.User, error) {
	if err := s.validator.Var(password, "required,min=6,max=72"); err != nil {
		return storage.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	key, err := s.store.AccessKeys().GetByID(ctx, keyID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, ErrInvalidKey
	}
	if err != nil {
		return storage.User{}, fmt.Errorf("load access key: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return storage.User{}, err
	}
	return s.insertUser(ctx, s.store, key, hash)
}

func (s *Service) insertUser(ctx context.Context, store storage.Store, key storage.AccessKey, hash string) (storage.User, error) {
	user, err := store.Users().Create(ctx, storage.User{
		KeyID:        key.ID,
		PasswordHash: hash,
		Role:         key.Role,
	})
	switch {
	case errors.Is(err, storage.ErrConflict):
		return storage.User{}, ErrAlreadyRegistered
	case errors.Is(err, storage.ErrNotFound):
		return storage.User{}, ErrInvalidKey
	case err != nil:
		return storage.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (storage.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	return user, mapStoreError(err, "get user")
}

func (s *Service) GetByKeyID(ctx context.Context, keyID string) (storage.User, error) {
	user, err := s.store.Users().GetByKeyID(ctx, keyID)
	return user, mapStoreError(err, "get user by key")
}

func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.store.Users().Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return ok, nil
}

// Register redeems an access key for a new user.
//
// Errors: ErrInvalidInput, ErrInvalidKey, ErrKeyAlreadyUsed,
// ErrAlreadyRegistered.
func (s *Service) Register(ctx context.Context, params RegisterParams) (Registered, error) {
	params.KeyID = strings.TrimSpace(params.KeyID)
	params.Key = strings.TrimSpace(params.Key)
	if err := s.validator.Struct(params); err != nil {
		metrics.Registrations.WithLabelValues("invalid_input").Inc()
		return Registered{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(params.Password) > maxPasswordBytes {
		metrics.Registrations.WithLabelValues("invalid_input").Inc()
		return Registered{}, fmt.Errorf("%w: password longer than %d bytes", ErrInvalidInput, maxPasswordBytes)
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		metrics.Registrations.WithLabelValues("error").Inc()
		return Registered{}, err
	}

	var (
		user storage.User
		key  storage.AccessKey
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		var err error
		key, err = lookupKey(ctx, tx, params)
		if err != nil {
			return err
		}
		if key.Used {
			return ErrKeyAlreadyUsed
		}
		if _, err := tx.Users().GetByKeyID(ctx, key.ID); err == nil {
			return ErrAlreadyRegistered
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("check existing user: %w", err)
		}

		user, err = s.insertUser(ctx, tx, key, hash)
		if err != nil {
			return err
		}

		used := true
		if _, err := tx.AccessKeys().Update(ctx, key.ID, storage.AccessKeyUpdate{Used: &used, AssignedTo: &user.ID}); err != nil {
			return fmt.Errorf("mark access key used: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.Registrations.WithLabelValues(registrationOutcome(err)).Inc()
		s.audit.LogFailure(ctx, "user.register", "anonymous", map[string]string{
			"key_id": params.KeyID,
			"reason": registrationOutcome(err),
		})
		return Registered{}, err
	}

	metrics.Registrations.WithLabelValues("success").Inc()
	s.audit.LogSuccess(ctx, "user.register", user.ID, "user", user.ID, map[string]string{
		"key_id": key.ID,
		"role":   user.Role,
	})
	s.logger.Info().Str("user_id", user.ID).Str("key_id", key.ID).Str("role", user.Role).Msg("access key redeemed")
	s.notifier.Notify(notify.KeyRedeemed(key.Username, auth.NormalizeRole(user.Role).DisplayName()))

	return Registered{
		ID:        user.ID,
		KeyID:     user.KeyID,
		Role:      user.Role,
		Username:  key.Username,
		CreatedAt: user.CreatedAt,
	}, nil
}

func lookupKey(ctx context.Context, tx storage.Store, params RegisterParams) (storage.AccessKey, error) {
	id := params.KeyID
	if id == "" {
		byToken, err := tx.AccessKeys().GetByKey(ctx, params.Key)
		if errors.Is(err, storage.ErrNotFound) {
			return storage.AccessKey{}, ErrInvalidKey
		}
		if err != nil {
			return storage.AccessKey{}, fmt.Errorf("load access key: %w", err)
		}
		id = byToken.ID
	}

	// by id again so backends with row locks hold the key until commit
	key, err := tx.AccessKeys().GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.AccessKey{}, ErrInvalidKey
	}
	if err != nil {
		return storage.AccessKey{}, fmt.Errorf("load access key: %w", err)
	}
	return key, nil
}

func registrationOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, ErrKeyAlreadyUsed):
		return "key_used"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	default:
		return "error"
	}
}

// Login checks a key and password and issues a session token. The key must
// have been redeemed.
func (s *Service) Login(ctx context.Context, token, password string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" || password == "" {
		return Session{}, fmt.Errorf("%w: key and password are required", ErrInvalidInput)
	}

	key, user, err := s.authenticate(ctx, token, password)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrInvalidCredentials) {
			outcome = "invalid_credentials"
		}
		metrics.Logins.WithLabelValues(outcome).Inc()
		return Session{}, err
	}

	session := Session{
		User: SessionUser{ID: user.ID, Role: user.Role, Username: key.Username},
	}
	if s.sessions != nil {
		signed, err := s.sessions.Generate(user.ID)
		if err != nil {
			metrics.Logins.WithLabelValues("error").Inc()
			return Session{}, fmt.Errorf("issue session: %w", err)
		}
		session.Token = signed
		session.ExpiresAt = s.now().Add(s.sessions.TTL()).UTC()
	}

	metrics.Logins.WithLabelValues("success").Inc()
	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")
	return session, nil
}

func (s *Service) authenticate(ctx context.Context, token, password string) (storage.AccessKey, storage.User, error) {
	key, err := s.store.AccessKeys().GetByKey(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.AccessKey{}, storage.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return storage.AccessKey{}, storage.User{}, fmt.Errorf("load access key: %w", err)
	}
	if !key.Used {
		return storage.AccessKey{}, storage.User{}, ErrInvalidCredentials
	}

	user, err := s.store.Users().GetByKeyID(ctx, key.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.AccessKey{}, storage.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return storage.AccessKey{}, storage.User{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return storage.AccessKey{}, storage.User{}, ErrInvalidCredentials
	}
	return key, user, nil
}

// ResolveActor loads the caller's role from storage. An empty id is
// ErrUnauthenticated and an unknown one ErrForbidden.
func (s *Service) ResolveActor(ctx context.Context, userID string) (auth.Actor, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return auth.Actor{}, ErrUnauthenticated
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return auth.Actor{}, ErrForbidden
	}
	if err != nil {
		return auth.Actor{}, fmt.Errorf("resolve actor: %w", err)
	}
	return auth.Actor{UserID: user.ID, Role: auth.NormalizeRole(user.Role)}, nil
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
