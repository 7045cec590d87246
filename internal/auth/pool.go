// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package auth

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

// HashPool runs password hashing under a concurrency bound.
type HashPool interface {
	// Hash produces a hash of the password, waiting for a free slot.
	Hash(ctx context.Context, password string) (string, error)

	// Verify checks the password against hash, waiting for a free slot.
	Verify(ctx context.Context, password, hash string) (bool, error)

	// NeedsUpgrade reports whether hash should be recomputed. It does no hashing.
	NeedsUpgrade(hash string) bool
}

// HashObserver receives the wall time of each hash operation.
type HashObserver interface {
	ObserveHash(op string, d time.Duration)
}

// PooledHasher bounds the number of concurrent argon2 computations so a
// burst of logins cannot exhaust CPU and memory for the rest of the server.
type PooledHasher struct {
	hasher   PasswordHasher
	sem      *semaphore.Weighted
	size     int64
	observer HashObserver
}

// NewPooledHasher wraps hasher with a pool of size slots.
// A size <= 0 uses runtime.GOMAXPROCS(0).
func NewPooledHasher(hasher PasswordHasher, size int) *PooledHasher {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &PooledHasher{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(size)),
		size:   int64(size),
	}
}

// WithObserver attaches an observer for hash timings and returns p.
func (p *PooledHasher) WithObserver(o HashObserver) *PooledHasher {
	p.observer = o
	return p
}

// Size returns the number of concurrent hash slots.
func (p *PooledHasher) Size() int {
	return int(p.size)
}

// Hash produces a hash of the password.
func (p *PooledHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := p.acquire(ctx, "hash"); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	start := time.Now()
	hash, err := p.hasher.Hash(password)
	p.observe("hash", start)
	if err != nil {
		return "", err
	}
	return hash, nil
}

// Verify checks the password against hash.
func (p *PooledHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := p.acquire(ctx, "verify"); err != nil {
		return false, err
	}
	defer p.sem.Release(1)

	start := time.Now()
	ok, err := p.hasher.Verify(password, hash)
	p.observe("verify", start)
	return ok, err
}

// NeedsUpgrade reports whether hash should be recomputed.
func (p *PooledHasher) NeedsUpgrade(hash string) bool {
	return p.hasher.NeedsUpgrade(hash)
}

func (p *PooledHasher) acquire(ctx context.Context, op string) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return oops.Code("AUTH_HASH_POOL_WAIT").
			With("operation", op).
			With("pool_size", p.size).
			Wrap(apierr.Internal.Wrap(err))
	}
	return nil
}

func (p *PooledHasher) observe(op string, start time.Time) {
	if p.observer != nil {
		p.observer.ObserveHash(op, time.Since(start))
	}
}

var _ HashPool = (*PooledHasher)(nil)
