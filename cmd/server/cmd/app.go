package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tes-agency/portal/internal/api"
	"github.com/tes-agency/portal/internal/audit"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/config"
	"github.com/tes-agency/portal/internal/domain/accesskeys"
	"github.com/tes-agency/portal/internal/domain/content"
	"github.com/tes-agency/portal/internal/domain/photos"
	"github.com/tes-agency/portal/internal/domain/users"
	"github.com/tes-agency/portal/internal/notify"
	"github.com/tes-agency/portal/internal/storage"
	"github.com/tes-agency/portal/internal/storage/backend"
)

const sessionIssuer = "tes-portal"

// app holds the storage handle and the domain services built on it.
type app struct {
	store    storage.Store
	kind     backend.Kind
	sessions *auth.JWTManager
	services api.Services
}

// openApp opens the configured backend and wires the services. The caller
// owns Close.
func openApp(ctx context.Context, cfg config.Config, logger zerolog.Logger, notifier notify.Notifier) (*app, error) {
	store, kind, err := backend.Open(ctx, backend.Options{
		URL:            cfg.Database.URL,
		MaxConnections: cfg.Database.MaxConnections,
		AutoMigrate:    cfg.Database.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sessions, err := auth.NewJWTManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, sessionIssuer)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("session manager: %w", err)
	}

	auditLogger := audit.NewLoggerWithZerolog(logger.With().Str("log", "audit").Logger())
	return &app{
		store:    store,
		kind:     kind,
		sessions: sessions,
		services: api.Services{
			AccessKeys: accesskeys.NewService(store, accesskeys.Config{
				Prefix:      cfg.AccessKeys.Prefix,
				MaxAttempts: cfg.AccessKeys.MaxAttempts,
			}, notifier, auditLogger, logger),
			Users:   users.NewService(store, auth.NewPasswordHasher(cfg.Auth.BcryptCost), sessions, notifier, auditLogger, logger),
			Photos:  photos.NewService(store, notifier, auditLogger, logger),
			Content: content.NewService(store, auditLogger, logger),
		},
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// bootstrap seeds the first directors_office key when enabled and the
// registry is empty.
func (a *app) bootstrap(ctx context.Context, cfg config.BootstrapConfig, logger zerolog.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	key, created, err := a.services.AccessKeys.Bootstrap(ctx, cfg.AdminUsername, cfg.AdminKey)
	if err != nil {
		return err
	}
	if created {
		logger.Warn().
			Str("username", key.Username).
			Str("access_key", key.Key).
			Msg("bootstrapped directors_office access key; register with it and keep it secret")
	}
	return nil
}
