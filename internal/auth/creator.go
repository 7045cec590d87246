// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

// Name validation constraints.
const (
	MinNameLength = 3
	MaxNameLength = 32
)

// MaxEmailLength is the RFC 5321 path limit.
const MaxEmailLength = 254

// MaxPasswordLength bounds the input handed to argon2.
const MaxPasswordLength = 1024

// nameRegex matches names that start with a letter and contain only
// letters, digits, underscores and hyphens.
var nameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// Creator is a registered account.
type Creator struct {
	ID           ulid.ULID
	Name         string
	Email        string
	PasswordHash string
	PictureRef   *string
	CreatedAt    time.Time
}

// NewCreator creates a validated Creator with a fresh ID.
// passwordHash must already be the output of a PasswordHasher.
func NewCreator(name, email, passwordHash string) (*Creator, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("CREATOR_INVALID_HASH").Wrap(apierr.Internal.Wrap(errors.New("password hash cannot be empty")))
	}

	return &Creator{
		ID:           ulid.Make(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// ValidateName validates a display name.
// Requirements:
// - Length: MinNameLength to MaxNameLength characters
// - Must start with a letter
// - Can contain only letters, digits, underscores and hyphens
func ValidateName(name string) error {
	switch {
	case name == "":
		return badRequest("CREATOR_INVALID_NAME", "name cannot be empty")
	case len(name) < MinNameLength:
		return oops.Code("CREATOR_INVALID_NAME").
			With("min", MinNameLength).
			Wrap(apierr.BadRequest.Wrap(fmt.Errorf("name must be at least %d characters", MinNameLength)))
	case len(name) > MaxNameLength:
		return oops.Code("CREATOR_INVALID_NAME").
			With("max", MaxNameLength).
			Wrap(apierr.BadRequest.Wrap(fmt.Errorf("name must be at most %d characters", MaxNameLength)))
	case !nameRegex.MatchString(name):
		return badRequest("CREATOR_INVALID_NAME",
			"name must start with a letter and contain only letters, digits, underscores and hyphens")
	}
	return nil
}

// ValidateEmail performs a structural check on an email address.
// Deliverability is not checked.
func ValidateEmail(email string) error {
	if email == "" {
		return badRequest("CREATOR_INVALID_EMAIL", "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("CREATOR_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Wrap(apierr.BadRequest.Wrap(fmt.Errorf("email must be at most %d characters", MaxEmailLength)))
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") || strings.ContainsAny(email, " \t\r\n") {
		return badRequest("CREATOR_INVALID_EMAIL", "email must have the form local@domain")
	}
	return nil
}

// ValidatePassword checks a plaintext password before it is hashed.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	return checkPasswordLength(password)
}

// checkPasswordLength enforces MaxPasswordLength on every path that hashes
// or verifies caller input.
func checkPasswordLength(password string) error {
	if len(password) > MaxPasswordLength {
		return oops.Code("AUTH_PASSWORD_TOO_LONG").
			With("max", MaxPasswordLength).
			Wrap(apierr.BadRequest.Wrap(fmt.Errorf("password must be at most %d bytes", MaxPasswordLength)))
	}
	return nil
}

// CreatorChanges is a partial write to a creator. Nil fields keep their
// stored value.
type CreatorChanges struct {
	Email        *string
	PasswordHash *string
	PictureRef   *string
	// ClearPicture removes the picture reference and wins over PictureRef.
	ClearPicture bool
	// IfPasswordHash, when set, applies the changes only while the stored
	// hash still equals it.
	IfPasswordHash *string
}

// CreatorRepository manages creator persistence.
type CreatorRepository interface {
	// Create stores a new creator.
	// Returns ErrAlreadyExists if the name or email is taken.
	Create(ctx context.Context, creator *Creator) error

	// GetByID retrieves a creator by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Creator, error)

	// GetByName retrieves a creator by name (case-insensitive).
	GetByName(ctx context.Context, name string) (*Creator, error)

	// GetByEmail retrieves a creator by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Creator, error)

	// LockByID retrieves a creator. Inside a transaction the row stays locked
	// until the transaction ends.
	LockByID(ctx context.Context, id ulid.ULID) (*Creator, error)

	// Update applies changes in a single write and returns the resulting row.
	// Returns ErrAlreadyExists if the new email is taken, ErrConflict if
	// IfPasswordHash no longer matches and ErrNotFound if the row is gone.
	Update(ctx context.Context, id ulid.ULID, changes CreatorChanges) (*Creator, error)

	// Delete removes a creator.
	Delete(ctx context.Context, id ulid.ULID) error
}
