// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

// Session is evidence that a Creator has authenticated.
// Sessions do not expire; they live until revoked.
type Session struct {
	Token     uuid.UUID
	Subject   ulid.ULID
	CreatedAt time.Time
}

// NewSession creates a Session with a fresh random token for subject.
func NewSession(subject ulid.ULID) (*Session, error) {
	if subject.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_SUBJECT").
			Wrap(apierr.Internal.Wrap(errors.New("subject cannot be zero")))
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:     token,
		Subject:   subject,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// GenerateSessionToken returns a random (version 4) UUID read from crypto/rand.
func GenerateSessionToken() (uuid.UUID, error) {
	token, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "uuid.NewRandom").
			Wrap(apierr.Internal.Wrap(err))
	}
	return token, nil
}

// ParseSessionToken parses the textual form of a token. Any parse failure is
// reported as Unauthorized without the parser's detail.
func ParseSessionToken(s string) (uuid.UUID, error) {
	token, err := uuid.Parse(s)
	if err != nil || token == uuid.Nil {
		return uuid.Nil, oops.Code("SESSION_TOKEN_MALFORMED").Wrap(apierr.Unauthorized)
	}
	return token, nil
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByToken retrieves a session by its token.
	GetByToken(ctx context.Context, token uuid.UUID) (*Session, error)

	// GetBySubject retrieves all sessions of a creator, oldest first.
	GetBySubject(ctx context.Context, subject ulid.ULID) ([]*Session, error)

	// DeleteByToken removes a session. Removing a missing session is not an error.
	DeleteByToken(ctx context.Context, token uuid.UUID) error

	// DeleteBySubject removes all sessions of a creator.
	DeleteBySubject(ctx context.Context, subject ulid.ULID) error

	// DeleteBySubjectExcept removes all sessions of a creator except keep.
	DeleteBySubjectExcept(ctx context.Context, subject ulid.ULID, keep uuid.UUID) error
}
