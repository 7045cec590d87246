// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"github.com/creatorhub/creatorhub/internal/auth"
	"github.com/creatorhub/creatorhub/internal/auth/postgres"
	"github.com/creatorhub/creatorhub/internal/config"
	"github.com/creatorhub/creatorhub/internal/httpapi"
	"github.com/creatorhub/creatorhub/internal/logging"
	"github.com/creatorhub/creatorhub/internal/objstore"
	"github.com/creatorhub/creatorhub/internal/observability"
	"github.com/creatorhub/creatorhub/internal/store"
)

const (
	serviceName       = "creatorhub"
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmdWithDeps(nil)
}

func newServeCmdWithDeps(deps *ServeDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API server. The server connects to PostgreSQL, applies
pending migrations unless auto-migrate is disabled, and serves metrics and
health probes on the metrics address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps)
		},
	}
}

// runServeWithDeps runs the server until ctx is cancelled, a shutdown signal
// arrives or a server fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd, deps.ConfigOptions)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "starting server", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := deps.PoolOpener(ctx, store.PoolConfig{
		URL:            cfg.Database.URL,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := runAutoMigration(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "auto-migration disabled")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, pool.Ping, logger)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_FAILED").With("operation", "start observability server").Wrap(err)
		}
		defer stopObservability(obsServer, logger)
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		metrics = obsServer.Metrics()
		logger.InfoContext(ctx, "observability server started", "addr", obsServer.Addr())
	}

	handler, err := buildAPI(ctx, cfg, pool, deps, metrics, logger)
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("SERVE_FAILED").
			With("operation", "listen").
			With("addr", cfg.HTTP.Addr).
			Wrap(err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	apiErrChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiErrChan <- err
		}
		close(apiErrChan)
	}()

	cmd.Printf("API listening on %s\n", listener.Addr())
	logger.InfoContext(ctx, "server ready", "addr", listener.Addr().String())

	var serveErr error
	select {
	case err, ok := <-apiErrChan:
		if ok {
			serveErr = oops.Code("SERVE_FAILED").With("operation", "serve api").Wrap(err)
		}
	case <-ctx.Done():
		logger.InfoContext(ctx, "shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WarnContext(shutdownCtx, "error shutting down api server", "error", err)
	}

	logger.InfoContext(shutdownCtx, "shutdown complete")
	return serveErr
}

// buildAPI wires the core services and the router.
func buildAPI(ctx context.Context, cfg *config.Config, pool Pool, deps *ServeDeps, metrics *observability.Metrics, logger *slog.Logger) (http.Handler, error) {
	hasher := auth.NewPooledHasher(auth.NewArgon2idHasher(), cfg.Auth.HashWorkers)
	if metrics != nil {
		hasher = hasher.WithObserver(metrics)
	}

	credentials, err := auth.NewCredentialStoreWithLogger(postgres.NewCreatorRepository(pool), hasher, logger)
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionStoreWithLogger(postgres.NewSessionRepository(pool), logger)
	if err != nil {
		return nil, err
	}
	authenticator, err := auth.NewAuthenticator(sessions)
	if err != nil {
		return nil, err
	}
	accounts, err := auth.NewAccountsWithLogger(credentials, sessions, postgres.NewTransactor(pool), logger)
	if err != nil {
		return nil, err
	}

	pictures, err := deps.ObjectStoreFactory(ctx, objstore.Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	}, logger)
	if err != nil {
		return nil, oops.Code("SERVE_FAILED").With("operation", "create object store").Wrap(err)
	}

	apiDeps := httpapi.Deps{
		Credentials:    credentials,
		Sessions:       sessions,
		Accounts:       accounts,
		Authenticator:  authenticator,
		Pictures:       pictures,
		Logger:         logger,
		Build:          version,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		LoginRate:      rate.Limit(cfg.Auth.LoginRate),
		LoginBurst:     cfg.Auth.LoginBurst,
	}
	if metrics != nil {
		apiDeps.Metrics = metrics
	}
	return httpapi.NewRouter(apiDeps)
}

// runAutoMigration applies pending migrations. A close failure is logged only.
func runAutoMigration(databaseURL string, factory func(string) (AutoMigrator, error), logger *slog.Logger) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	logger.Info("running database migrations")
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("database migrations complete")
	return nil
}

func stopObservability(server ObservabilityServer, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when errCh delivers an error. It exits when
// the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

var _ httpapi.Recorder = (*observability.Metrics)(nil)
