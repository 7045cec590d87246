// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

const bearerScheme = "bearer "

// SessionLookup resolves a token to its session.
type SessionLookup interface {
	GetByToken(ctx context.Context, token uuid.UUID) (*Session, error)
}

// Authenticator turns request headers into an authenticated Session.
type Authenticator struct {
	sessions SessionLookup
}

// NewAuthenticator creates an Authenticator backed by sessions.
func NewAuthenticator(sessions SessionLookup) (*Authenticator, error) {
	if sessions == nil {
		return nil, oops.Code("AUTHENTICATOR_INVALID").Errorf("session lookup is required")
	}
	return &Authenticator{sessions: sessions}, nil
}

// Authenticate reads the Authorization header, parses the token and resolves
// it to a live session. Every failure other than a storage fault is Unauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, header http.Header) (*Session, error) {
	token, err := TokenFromHeader(header)
	if err != nil {
		return nil, err
	}
	return a.sessions.GetByToken(ctx, token)
}

// TokenFromHeader extracts the session token from the Authorization header.
// The "Bearer " prefix is optional and its scheme is matched case-insensitively.
func TokenFromHeader(header http.Header) (uuid.UUID, error) {
	raw := strings.TrimSpace(header.Get("Authorization"))
	if raw == "" {
		return uuid.Nil, oops.Code("SESSION_MISSING").Wrap(apierr.Unauthorized)
	}
	if len(raw) >= len(bearerScheme) && strings.EqualFold(raw[:len(bearerScheme)], bearerScheme) {
		raw = strings.TrimSpace(raw[len(bearerScheme):])
	}
	return ParseSessionToken(raw)
}

var _ SessionLookup = (*SessionStore)(nil)
