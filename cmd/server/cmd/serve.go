package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tes-agency/portal/internal/api"
	"github.com/tes-agency/portal/internal/api/handlers"
	"github.com/tes-agency/portal/internal/api/middleware"
	"github.com/tes-agency/portal/internal/config"
	"github.com/tes-agency/portal/internal/metrics"
	"github.com/tes-agency/portal/internal/notify"
	"github.com/tes-agency/portal/internal/storage/backend"
	"github.com/tes-agency/portal/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const dbStatsInterval = 15 * time.Second

type serveOptions struct {
	host string
	port int
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and serve the JSON API.

The server will:
- Load configuration from --config and environment variables
- Open the storage backend selected by DATABASE_URL (memory when empty)
- Seed a directors_office access key into an empty registry
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with configuration from env vars
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with a config file and debug logging
  server serve --config /etc/tes/portal.yaml --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if opts.host != "" {
				cfg.Server.Host = opts.host
			}
			if opts.port != 0 {
				cfg.Server.Port = opts.port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config error: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 5000)")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting portal server")

	generated, err := cfg.EnsureSessionSecret()
	if err != nil {
		return err
	}
	if generated {
		logger.Warn().Msg("SESSION_SECRET not set; generated one, sessions will not survive a restart")
	}

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)

	var (
		notifier   notify.Notifier = notify.Nop{}
		dispatcher *notify.Dispatcher
	)
	webhook := cfg.Notify.DiscordWebhookURL != ""
	if webhook {
		dispatcher = notify.NewDispatcher(
			notify.NewDiscordClient(cfg.Notify.DiscordWebhookURL, notify.WithRateLimit(cfg.Notify.RatePerSecond)),
			notify.DispatcherConfig{
				QueueSize: cfg.Notify.QueueSize,
				Timeout:   cfg.Notify.Timeout,
				Outcome:   metrics.RecordNotification,
			},
			logger,
		)
		notifier = dispatcher
	} else {
		logger.Info().Msg("DISCORD_WEBHOOK_URL not set; notifications disabled")
	}

	portal, err := openApp(ctx, cfg, logger, notifier)
	if err != nil {
		return err
	}
	defer func() {
		if err := portal.Close(); err != nil {
			logger.Error().Err(err).Msg("storage close error")
		}
	}()
	metrics.StorageBackend.WithLabelValues(string(portal.kind)).Set(1)
	logger.Info().Str("backend", string(portal.kind)).Msg("storage ready")

	if err := portal.bootstrap(ctx, cfg.Bootstrap, logger); err != nil {
		return fmt.Errorf("bootstrap access key: %w", err)
	}

	// Nothing may run in the group before this point: the early returns
	// above never reach group.Wait.
	if dispatcher != nil {
		group.Go(func() error { return dispatcher.Run(groupCtx) })
	}

	if src, ok := portal.store.(backend.PoolStatsSource); ok {
		collector := metrics.NewDBCollector(src.PoolStats)
		group.Go(func() error { return collector.Run(groupCtx, dbStatsInterval) })
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	defer limiter.Stop()

	health := handlers.NewHealthChecker(portal.store, string(portal.kind), webhook, handlers.BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	})

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(api.RouterDeps{
			Config:   cfg,
			Logger:   logger,
			Services: portal.services,
			Sessions: portal.sessions,
			Health:   health,
			Limiter:  limiter,
		}),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	group.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info().Msg("shutting down")
		health.Drain()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	})

	return group.Wait()
}
