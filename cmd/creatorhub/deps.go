package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/creatorhub/creatorhub/internal/auth/postgres"
	"github.com/creatorhub/creatorhub/internal/config"
	"github.com/creatorhub/creatorhub/internal/httpapi"
	"github.com/creatorhub/creatorhub/internal/objstore"
	"github.com/creatorhub/creatorhub/internal/observability"
	"github.com/creatorhub/creatorhub/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConfigOptions tunes configuration loading.
	// Default: the process environment and ./.env
	ConfigOptions config.Options

	// PoolOpener connects to PostgreSQL.
	// Default: store.Open
	PoolOpener func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Pool, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// ObjectStoreFactory creates the picture store.
	// Default: objstore.New
	ObjectStoreFactory func(ctx context.Context, cfg objstore.Config, logger *slog.Logger) (httpapi.PictureStore, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// ConfigOptions tunes configuration loading.
	ConfigOptions config.Options

	// MigratorFactory creates a migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

// Pool is the part of *pgxpool.Pool serve needs.
type Pool interface {
	postgres.DBTX
	postgres.TxBeginner
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// AutoMigrator is the subset of store.Migrator used on startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// Migrator is the subset of store.Migrator used by the migrate commands.
type Migrator interface {
	AutoMigrator
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolOpener == nil {
		out.PoolOpener = func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Pool, error) {
			pool, err := store.Open(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (AutoMigrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.ObjectStoreFactory == nil {
		out.ObjectStoreFactory = func(ctx context.Context, cfg objstore.Config, logger *slog.Logger) (httpapi.PictureStore, error) {
			s, err := objstore.New(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker, logger)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	return &out
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	out := MigrateDeps{}
	if d != nil {
		out = *d
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return &out
}
