// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/auth"
)

// TxBeginner starts transactions. *pgxpool.Pool and pgxmock pools satisfy it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Transactor implements auth.Transactor with pgx transactions.
type Transactor struct {
	db TxBeginner
}

// NewTransactor creates a Transactor over db.
func NewTransactor(db TxBeginner) *Transactor {
	return &Transactor{db: db}
}

// WithinTx runs fn with repositories bound to a new transaction. It commits
// when fn returns nil and rolls back on error or panic. Panics are rethrown.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos auth.Repositories) error) (err error) {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = oops.Code("TX_COMMIT_FAILED").Wrap(commitErr)
		}
	}()

	return fn(ctx, auth.Repositories{
		Creators: NewCreatorRepository(tx),
		Sessions: NewSessionRepository(tx),
	})
}

var _ auth.Transactor = (*Transactor)(nil)
