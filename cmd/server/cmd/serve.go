package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/api"
	"github.com/Togather-Foundation/eventplus/internal/api/handlers"
	"github.com/Togather-Foundation/eventplus/internal/audit"
	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/config"
	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/Togather-Foundation/eventplus/internal/domain/users"
	"github.com/Togather-Foundation/eventplus/internal/email"
	"github.com/Togather-Foundation/eventplus/internal/i18n"
	"github.com/Togather-Foundation/eventplus/internal/jobs"
	"github.com/Togather-Foundation/eventplus/internal/metrics"
	"github.com/Togather-Foundation/eventplus/internal/moderation"
	"github.com/Togather-Foundation/eventplus/internal/storage/postgres"
	"github.com/Togather-Foundation/eventplus/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveFlags struct {
	host string
	port int
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	flags := serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the EventPlus HTTP server",
		Long: `Start the EventPlus HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Bootstrap an administrator if ADMIN_* env vars are set
- Start background moderation retries when JOBS_ENABLED is true
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  eventplus serve

  # Start on a specific host and port
  eventplus serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  eventplus serve --log-level debug

  # Start with a config file
  eventplus serve --config /etc/eventplus/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), opts, flags)
		},
	}
	cmd.Flags().StringVar(&flags.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "server port (default: 8080)")
	return cmd
}

func runServer(parent context.Context, opts *globalOptions, flags serveFlags) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if flags.host != "" {
		cfg.Server.Host = flags.host
	}
	if flags.port != 0 {
		cfg.Server.Port = flags.port
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting EventPlus server")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	poolCtx, poolCancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	pool, err := postgres.OpenPool(poolCtx, cfg.Database.URL, postgres.PoolOptions{
		MaxConns:       int32(cfg.Database.MaxConnections),
		MinConns:       int32(cfg.Database.MinConnections),
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := metrics.RegisterPool(pool); err != nil {
		logger.Warn().Err(err).Msg("pool metrics not registered")
	}
	defer pool.Close()

	store, err := postgres.NewStore(pool,
		postgres.WithTxRetry(uint(cfg.Database.TxRetries), 50*time.Millisecond),
		postgres.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	auditLogger := audit.NewLogger(logger)
	userService := users.NewService(store.Users(), auditLogger, logger, users.WithBcryptCost(cfg.Auth.BcryptCost))
	bootstrapAdministrator(ctx, cfg.AdminBootstrap, userService, logger)

	oracle, err := newOracle(cfg.Moderation)
	if err != nil {
		return err
	}

	emailService, err := email.NewService(cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	notifier, err := email.NewCommentNotifier(userService, emailService, cfg.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("email notifier: %w", err)
	}

	catalog := events.NewCatalog(store, auditLogger, logger)
	ledger := events.NewLedger(store, logger)
	pipeline := events.NewPipeline(store, oracle, logger,
		events.WithNotifier(notifier),
		events.WithModerationTimeout(cfg.Moderation.Timeout),
		events.WithAuditLogger(auditLogger),
	)

	riverClient, err := newJobClient(cfg.Jobs, config.NewSlogLogger(cfg.Logging), pool, pipeline)
	if err != nil {
		return err
	}

	tokens, err := auth.NewAccessTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.ClockSkew)
	if err != nil {
		return fmt.Errorf("access tokens: %w", err)
	}

	translator, err := i18n.NewTranslator()
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	health := handlers.NewHealthChecker(Version, GitCommit).
		Register("database", handlers.DatabaseCheck(pool)).
		Register("migrations", handlers.MigrationCheck(pool)).
		Register("job_queue", handlers.JobQueueCheck(pool, riverClient != nil))

	router := api.NewRouter(api.Deps{
		Config:     cfg,
		Logger:     logger,
		Build:      api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
		Translator: translator,
		Tokens:     tokens,
		Users:      userService,
		Catalog:    catalog,
		Ledger:     ledger,
		Comments:   pipeline,
		Health:     health,
	})
	defer router.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if riverClient != nil {
		if err := riverClient.Start(groupCtx); err != nil {
			return fmt.Errorf("river workers failed to start: %w", err)
		}
		logger.Info().Msg("moderation retry workers started")
	} else {
		logger.Warn().Msg("background jobs disabled; pending comments wait for manual moderation")
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if riverClient != nil {
			if err := riverClient.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("river shutdown: %w", err))
			} else {
				logger.Info().Msg("river workers stopped")
			}
		}
		return errors.Join(errs...)
	})

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// bootstrapAdministrator creates the first administrator from ADMIN_* settings.
// Failures are logged; the server still starts.
func bootstrapAdministrator(ctx context.Context, cfg config.AdminBootstrapConfig, service *users.Service, logger zerolog.Logger) {
	if cfg.Username == "" || cfg.Password == "" || cfg.Email == "" {
		logger.Warn().Msg("admin bootstrap env vars not fully set; skipping")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	user, created, err := service.EnsureAdministrator(ctx, cfg.Username, cfg.Email, cfg.Password)
	if err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
		return
	}
	if created {
		logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("administrator created")
	}
}

func newOracle(cfg config.ModerationConfig) (moderation.Oracle, error) {
	switch cfg.Provider {
	case "contentsafety":
		return moderation.NewContentSafetyClient(cfg.Endpoint, cfg.APIKey,
			moderation.WithRateLimit(cfg.RequestsPerSecond),
			moderation.WithThreshold(cfg.Threshold),
			moderation.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		), nil
	case "blocklist":
		return moderation.NewBlocklist(cfg.Blocklist...), nil
	default:
		return nil, fmt.Errorf("unsupported moderation provider %q", cfg.Provider)
	}
}

// newJobClient builds the River client that retries moderation and sweeps
// stale pending comments. It returns nil when jobs are disabled.
func newJobClient(cfg config.JobsConfig, slogger *slog.Logger, pool *pgxpool.Pool, pipeline *events.Pipeline) (*river.Client[pgx.Tx], error) {
	if !cfg.Enabled {
		return nil, nil
	}

	policy := jobs.NewRetryPolicy().WithModerationRetry(cfg.ModerationMaxAttempts, cfg.ModerationBaseDelay, cfg.ModerationMaxDelay)
	scheduler := jobs.NewScheduler(policy, slogger)
	pipeline.SetRetryScheduler(scheduler)

	workers := jobs.NewWorkers(jobs.WorkerDeps{
		Moderator:  pipeline,
		Stale:      pipeline,
		Scheduler:  scheduler,
		StaleAfter: cfg.StaleAfter,
		JobTimeout: cfg.JobTimeout,
		Logger:     slogger,
	})
	riverConfig := jobs.NewClientConfig(jobs.ClientOptions{
		Policy:       policy,
		Workers:      workers,
		Logger:       slogger,
		Hooks:        []rivertype.Hook{metrics.NewJobHook()},
		PeriodicJobs: jobs.NewPeriodicJobs(cfg.SweepInterval),
		Abandoner:    pipeline,
	})
	client, err := jobs.NewClient(pool, riverConfig)
	if err != nil {
		return nil, fmt.Errorf("river client: %w", err)
	}
	scheduler.Bind(client)
	return client, nil
}
