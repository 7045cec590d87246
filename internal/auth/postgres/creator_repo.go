// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/auth"
)

const creatorColumns = `id, name, email, password_hash, picture_ref, created_at`

// CreatorRepository implements auth.CreatorRepository using PostgreSQL.
type CreatorRepository struct {
	db DBTX
}

// NewCreatorRepository creates a new CreatorRepository.
func NewCreatorRepository(db DBTX) *CreatorRepository {
	return &CreatorRepository{db: db}
}

// Create stores a new creator.
func (r *CreatorRepository) Create(ctx context.Context, creator *auth.Creator) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO creators (id, name, email, password_hash, picture_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		creator.ID.String(),
		creator.Name,
		creator.Email,
		creator.PasswordHash,
		creator.PictureRef,
		creator.CreatedAt,
	)
	if constraint := uniqueViolation(err); constraint != "" {
		return oops.Code("CREATOR_DUPLICATE").
			With("name", creator.Name).
			With("constraint", constraint).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("CREATOR_CREATE_FAILED").
			With("operation", "insert creator").
			With("name", creator.Name).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a creator by ID.
func (r *CreatorRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Creator, error) {
	row := r.db.QueryRow(ctx, `SELECT `+creatorColumns+` FROM creators WHERE id = $1`, id.String())
	return r.lookup(row, "id", id.String())
}

// GetByName retrieves a creator by name (case-insensitive).
func (r *CreatorRepository) GetByName(ctx context.Context, name string) (*auth.Creator, error) {
	row := r.db.QueryRow(ctx, `SELECT `+creatorColumns+` FROM creators WHERE LOWER(name) = LOWER($1)`, name)
	return r.lookup(row, "name", name)
}

// GetByEmail retrieves a creator by email (case-insensitive).
func (r *CreatorRepository) GetByEmail(ctx context.Context, email string) (*auth.Creator, error) {
	row := r.db.QueryRow(ctx, `SELECT `+creatorColumns+` FROM creators WHERE LOWER(email) = LOWER($1)`, email)
	return r.lookup(row, "email", email)
}

func (r *CreatorRepository) lookup(row pgx.Row, key, value string) (*auth.Creator, error) {
	creator, err := scanCreator(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREATOR_NOT_FOUND").
			With(key, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREATOR_GET_FAILED").
			With("operation", "get creator by "+key).
			With(key, value).
			Wrap(err)
	}
	return creator, nil
}

// LockByID retrieves a creator with SELECT ... FOR UPDATE. The lock lasts
// until the surrounding transaction ends; on a pool it is released at once.
func (r *CreatorRepository) LockByID(ctx context.Context, id ulid.ULID) (*auth.Creator, error) {
	row := r.db.QueryRow(ctx, `SELECT `+creatorColumns+` FROM creators WHERE id = $1 FOR UPDATE`, id.String())
	return r.lookup(row, "id", id.String())
}

// Update applies changes in one statement. Columns whose change is nil keep
// their stored value, so concurrent partial updates never overwrite each
// other's fields.
func (r *CreatorRepository) Update(ctx context.Context, id ulid.ULID, changes auth.CreatorChanges) (*auth.Creator, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE creators SET
			email = COALESCE($2, email),
			password_hash = COALESCE($3, password_hash),
			picture_ref = CASE WHEN $5::boolean THEN NULL ELSE COALESCE($4, picture_ref) END
		WHERE id = $1 AND password_hash = COALESCE($6, password_hash)
		RETURNING `+creatorColumns,
		id.String(),
		changes.Email,
		changes.PasswordHash,
		changes.PictureRef,
		changes.ClearPicture,
		changes.IfPasswordHash,
	)
	creator, err := scanCreator(row)
	if constraint := uniqueViolation(err); constraint != "" {
		return nil, oops.Code("CREATOR_DUPLICATE").
			With("id", id.String()).
			With("constraint", constraint).
			Wrap(auth.ErrAlreadyExists)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missedUpdate(ctx, id, changes)
	}
	if err != nil {
		return nil, oops.Code("CREATOR_UPDATE_FAILED").
			With("operation", "update creator").
			With("id", id.String()).
			Wrap(err)
	}
	return creator, nil
}

// missedUpdate tells a vanished row from a failed hash guard.
func (r *CreatorRepository) missedUpdate(ctx context.Context, id ulid.ULID, changes auth.CreatorChanges) error {
	notFound := oops.Code("CREATOR_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	if changes.IfPasswordHash == nil {
		return notFound
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM creators WHERE id = $1)`, id.String()).Scan(&exists); err != nil {
		return oops.Code("CREATOR_UPDATE_FAILED").
			With("operation", "check creator").
			With("id", id.String()).
			Wrap(err)
	}
	if !exists {
		return notFound
	}
	return oops.Code("CREATOR_CONFLICT").With("id", id.String()).Wrap(auth.ErrConflict)
}

// Delete removes a creator. Sessions referencing it must be removed first.
func (r *CreatorRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM creators WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("CREATOR_DELETE_FAILED").
			With("operation", "delete creator").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREATOR_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanCreator(row pgx.Row) (*auth.Creator, error) {
	var (
		idStr      string
		creator    auth.Creator
		pictureRef pgtype.Text
		createdAt  time.Time
	)
	if err := row.Scan(&idStr, &creator.Name, &creator.Email, &creator.PasswordHash, &pictureRef, &createdAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("CREATOR_INVALID_ID").With("id", idStr).Wrap(err)
	}
	creator.ID = id
	creator.CreatedAt = createdAt.UTC()
	if pictureRef.Valid {
		ref := pictureRef.String
		creator.PictureRef = &ref
	}
	return &creator, nil
}

var _ auth.CreatorRepository = (*CreatorRepository)(nil)
