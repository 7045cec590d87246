// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (token, subject, created_at)
		VALUES ($1, $2, $3)
	`,
		session.Token.String(),
		session.Subject.String(),
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("subject", session.Subject.String()).
			Wrap(err)
	}
	return nil
}

// GetByToken retrieves a session by its token.
func (r *SessionRepository) GetByToken(ctx context.Context, token uuid.UUID) (*auth.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT token, subject, created_at
		FROM sessions
		WHERE token = $1
	`, token.String())

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token").
			Wrap(err)
	}
	return session, nil
}

// GetBySubject retrieves all sessions of a creator, oldest first.
func (r *SessionRepository) GetBySubject(ctx context.Context, subject ulid.ULID) ([]*auth.Session, error) {
	rows, err := r.db.Query(ctx, `
		SELECT token, subject, created_at
		FROM sessions
		WHERE subject = $1
		ORDER BY created_at ASC, token ASC
	`, subject.String())
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_SUBJECT_FAILED").
			With("operation", "get sessions by subject").
			With("subject", subject.String()).
			Wrap(err)
	}
	defer rows.Close()

	sessions := []*auth.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("subject", subject.String()).
				Wrap(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_GET_BY_SUBJECT_FAILED").
			With("operation", "iterate sessions").
			With("subject", subject.String()).
			Wrap(err)
	}
	return sessions, nil
}

// DeleteByToken removes a session.
func (r *SessionRepository) DeleteByToken(ctx context.Context, token uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token.String()); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session by token").
			Wrap(err)
	}
	return nil
}

// DeleteBySubject removes all sessions of a creator.
func (r *SessionRepository) DeleteBySubject(ctx context.Context, subject ulid.ULID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE subject = $1`, subject.String()); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete sessions by subject").
			With("subject", subject.String()).
			Wrap(err)
	}
	return nil
}

// DeleteBySubjectExcept removes all sessions of a creator except keep.
func (r *SessionRepository) DeleteBySubjectExcept(ctx context.Context, subject ulid.ULID, keep uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE subject = $1 AND token <> $2`,
		subject.String(), keep.String()); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete other sessions").
			With("subject", subject.String()).
			Wrap(err)
	}
	return nil
}

func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		token      pgtype.UUID
		subjectStr string
		createdAt  time.Time
	)
	if err := row.Scan(&token, &subjectStr, &createdAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	subject, err := ulid.Parse(subjectStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_SUBJECT").With("subject", subjectStr).Wrap(err)
	}
	return &auth.Session{
		Token:     uuid.UUID(token.Bytes),
		Subject:   subject,
		CreatedAt: createdAt.UTC(),
	}, nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
