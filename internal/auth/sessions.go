// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

// SessionStore issues, looks up and revokes sessions.
type SessionStore struct {
	sessions SessionRepository
	logger   *slog.Logger
}

// NewSessionStore creates a SessionStore that logs to slog.Default().
func NewSessionStore(sessions SessionRepository) (*SessionStore, error) {
	return NewSessionStoreWithLogger(sessions, slog.Default())
}

// NewSessionStoreWithLogger creates a SessionStore with an explicit logger.
func NewSessionStoreWithLogger(sessions SessionRepository, logger *slog.Logger) (*SessionStore, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_STORE_INVALID").Errorf("session repository is required")
	}
	if logger == nil {
		return nil, oops.Code("SESSION_STORE_INVALID").Errorf("logger is required")
	}
	return &SessionStore{sessions: sessions, logger: logger}, nil
}

// Create issues a new session for subject.
func (s *SessionStore) Create(ctx context.Context, subject ulid.ULID) (*Session, error) {
	session, err := NewSession(subject)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("subject", subject.String()).
			Wrap(apierr.Internal.Wrap(err))
	}

	s.logger.DebugContext(ctx, "session created", "subject", subject.String())
	return session, nil
}

// GetByToken retrieves the session for token. An unknown token is Unauthorized.
func (s *SessionStore) GetByToken(ctx context.Context, token uuid.UUID) (*Session, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrap(apierr.Unauthorized)
		}
		return nil, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "get session by token").
			Wrap(apierr.Internal.Wrap(err))
	}
	return session, nil
}

// GetBySubject lists the sessions of subject, oldest first.
// It returns an empty slice when there are none.
func (s *SessionStore) GetBySubject(ctx context.Context, subject ulid.ULID) ([]*Session, error) {
	sessions, err := s.sessions.GetBySubject(ctx, subject)
	if err != nil {
		return nil, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "get sessions by subject").
			With("subject", subject.String()).
			Wrap(apierr.Internal.Wrap(err))
	}
	if sessions == nil {
		sessions = []*Session{}
	}
	return sessions, nil
}

// RemoveByToken revokes one session. Revoking an unknown token succeeds.
func (s *SessionStore) RemoveByToken(ctx context.Context, token uuid.UUID) error {
	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session by token").
			Wrap(apierr.Internal.Wrap(err))
	}
	return nil
}

// RemoveBySubject revokes every session of subject.
func (s *SessionStore) RemoveBySubject(ctx context.Context, subject ulid.ULID) error {
	if err := s.sessions.DeleteBySubject(ctx, subject); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete sessions by subject").
			With("subject", subject.String()).
			Wrap(apierr.Internal.Wrap(err))
	}

	s.logger.InfoContext(ctx, "sessions revoked", "subject", subject.String())
	return nil
}

// RevokeOthers revokes every session of keep.Subject except keep itself.
func (s *SessionStore) RevokeOthers(ctx context.Context, keep *Session) error {
	if err := s.sessions.DeleteBySubjectExcept(ctx, keep.Subject, keep.Token); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete other sessions").
			With("subject", keep.Subject.String()).
			Wrap(apierr.Internal.Wrap(err))
	}

	s.logger.InfoContext(ctx, "other sessions revoked", "subject", keep.Subject.String())
	return nil
}

// withRepository returns a copy of s backed by sessions.
func (s *SessionStore) withRepository(sessions SessionRepository) *SessionStore {
	bound := *s
	bound.sessions = sessions
	return &bound
}
