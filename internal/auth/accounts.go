// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

// Repositories are the repositories bound to one transaction.
type Repositories struct {
	Creators CreatorRepository
	Sessions SessionRepository
}

// Transactor runs fn inside one database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Accounts runs operations that span a creator and its sessions.
type Accounts struct {
	creds    *CredentialStore
	sessions *SessionStore
	tx       Transactor
	logger   *slog.Logger
}

// NewAccounts creates Accounts that log to slog.Default().
func NewAccounts(creds *CredentialStore, sessions *SessionStore, tx Transactor) (*Accounts, error) {
	return NewAccountsWithLogger(creds, sessions, tx, slog.Default())
}

// NewAccountsWithLogger creates Accounts with an explicit logger.
func NewAccountsWithLogger(creds *CredentialStore, sessions *SessionStore, tx Transactor, logger *slog.Logger) (*Accounts, error) {
	if creds == nil {
		return nil, oops.Code("ACCOUNTS_INVALID").Errorf("credential store is required")
	}
	if sessions == nil {
		return nil, oops.Code("ACCOUNTS_INVALID").Errorf("session store is required")
	}
	if tx == nil {
		return nil, oops.Code("ACCOUNTS_INVALID").Errorf("transactor is required")
	}
	if logger == nil {
		return nil, oops.Code("ACCOUNTS_INVALID").Errorf("logger is required")
	}
	return &Accounts{creds: creds, sessions: sessions, tx: tx, logger: logger}, nil
}

// Delete re-confirms password, then in one transaction locks the creator,
// revokes every session and removes the creator. A session inserted by a
// concurrent sign-in either commits before the lock and is revoked here, or
// waits for the lock and then fails because the creator is gone.
func (a *Accounts) Delete(ctx context.Context, id ulid.ULID, password string) error {
	creator, err := a.creds.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := a.creds.Verify(ctx, creator, password); err != nil {
		return err
	}

	err = a.tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		locked, err := repos.Creators.LockByID(ctx, id)
		if err != nil {
			_, err = lookupResult(nil, err, "id", id.String())
			return err
		}
		if locked.PasswordHash != creator.PasswordHash {
			return invalidCredentials(id)
		}
		if err := a.sessions.withRepository(repos.Sessions).RemoveBySubject(ctx, id); err != nil {
			return err
		}
		return a.creds.withRepository(repos.Creators).DeleteByID(ctx, id)
	})
	if err != nil {
		if _, ok := oops.AsOops(err); ok {
			return err
		}
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "commit").
			With("creator_id", id.String()).
			Wrap(apierr.Internal.Wrap(err))
	}

	a.logger.InfoContext(ctx, "account deleted", "creator_id", id.String())
	return nil
}
