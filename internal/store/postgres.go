// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	DefaultConnectTimeout = 30 * time.Second
	defaultBackoffBase    = 250 * time.Millisecond
	defaultBackoffCap     = 5 * time.Second
)

// PoolConfig configures Open.
type PoolConfig struct {
	URL string
	// ConnectTimeout bounds the total time spent waiting for the first
	// successful ping, retries included. Zero uses DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// MaxConns overrides the pgxpool default when positive.
	MaxConns int32
	// MaxRetries bounds the number of reconnect attempts. Zero means the
	// timeout alone limits retrying.
	MaxRetries uint64
}

// Open creates a pool and waits until the database answers a ping. Failed
// pings are retried with capped exponential backoff. A malformed URL fails
// immediately.
func Open(ctx context.Context, cfg PoolConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithCappedDuration(defaultBackoffCap, retry.NewExponential(defaultBackoffBase))
	if cfg.MaxRetries > 0 {
		backoff = retry.WithMaxRetries(cfg.MaxRetries, backoff)
	}

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not reachable, retrying",
				"attempt", attempt,
				"host", poolCfg.ConnConfig.Host,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", poolCfg.ConnConfig.Host).
			With("attempts", attempt).
			Wrap(err)
	}

	logger.InfoContext(ctx, "database connected",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"attempts", attempt)
	return pool, nil
}
