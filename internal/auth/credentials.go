// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

// dummyPasswordHash is verified against when a login misses so the miss costs
// the same as a wrong password.
//
//nolint:gosec // G101: fixed placeholder hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// UpdateParams carries a coalescing profile update. A nil field is left unchanged.
type UpdateParams struct {
	Email           *string
	CurrentPassword string
	NewPassword     *string
	// PictureRef replaces the picture reference. An empty string clears it.
	PictureRef *string
}

// CredentialStore owns Creator records and their passwords.
type CredentialStore struct {
	creators CreatorRepository
	hasher   HashPool
	logger   *slog.Logger
}

// NewCredentialStore creates a CredentialStore that logs to slog.Default().
func NewCredentialStore(creators CreatorRepository, hasher HashPool) (*CredentialStore, error) {
	return NewCredentialStoreWithLogger(creators, hasher, slog.Default())
}

// NewCredentialStoreWithLogger creates a CredentialStore with an explicit logger.
func NewCredentialStoreWithLogger(creators CreatorRepository, hasher HashPool, logger *slog.Logger) (*CredentialStore, error) {
	if creators == nil {
		return nil, oops.Code("CREDENTIAL_STORE_INVALID").Errorf("creators repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("CREDENTIAL_STORE_INVALID").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("CREDENTIAL_STORE_INVALID").Errorf("logger is required")
	}
	return &CredentialStore{
		creators: creators,
		hasher:   hasher,
		logger:   logger,
	}, nil
}

// Create registers a new creator.
func (s *CredentialStore) Create(ctx context.Context, name, email, password string) (*Creator, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, oops.Code("CREATOR_CREATE_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	creator, err := NewCreator(name, email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.creators.Create(ctx, creator); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, oops.Code("CREATOR_ALREADY_EXISTS").
				With("name", name).
				Wrap(apierr.AlreadyExists.Wrap(err))
		}
		return nil, oops.Code("CREATOR_CREATE_FAILED").
			With("operation", "persist creator").
			With("name", name).
			Wrap(apierr.Internal.Wrap(err))
	}

	s.logger.InfoContext(ctx, "creator created", "creator_id", creator.ID.String())
	return creator, nil
}

// GetByID retrieves a creator by ID.
func (s *CredentialStore) GetByID(ctx context.Context, id ulid.ULID) (*Creator, error) {
	creator, err := s.creators.GetByID(ctx, id)
	return lookupResult(creator, err, "id", id.String())
}

// GetByName retrieves a creator by name.
func (s *CredentialStore) GetByName(ctx context.Context, name string) (*Creator, error) {
	creator, err := s.creators.GetByName(ctx, name)
	return lookupResult(creator, err, "name", name)
}

// GetByEmail retrieves a creator by email.
func (s *CredentialStore) GetByEmail(ctx context.Context, email string) (*Creator, error) {
	creator, err := s.creators.GetByEmail(ctx, email)
	return lookupResult(creator, err, "email", email)
}

func lookupResult(creator *Creator, err error, key, value string) (*Creator, error) {
	if err == nil {
		return creator, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("CREATOR_NOT_FOUND").With(key, value).Wrap(apierr.NotFound)
	}
	return nil, oops.Code("CREATOR_LOOKUP_FAILED").
		With("operation", "get creator by "+key).
		With(key, value).
		Wrap(apierr.Internal.Wrap(err))
}

// maxUpdateAttempts bounds retries of an update whose guarded write lost to a
// concurrent change of the stored hash.
const maxUpdateAttempts = 2

// Verify checks password against the creator's stored hash.
func (s *CredentialStore) Verify(ctx context.Context, creator *Creator, password string) error {
	if err := checkPasswordLength(password); err != nil {
		return err
	}
	ok, err := s.hasher.Verify(ctx, password, creator.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_VERIFY_FAILED").
			With("creator_id", creator.ID.String()).
			Wrap(err)
	}
	if !ok {
		return invalidCredentials(creator.ID)
	}
	return nil
}

func invalidCredentials(id ulid.ULID) error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").
		With("creator_id", id.String()).
		Wrap(apierr.Unauthorized)
}

// Authenticate resolves login as an email when it contains '@' and as a name
// otherwise, then verifies password. A miss still pays for one verification.
// A successful verification of a hash made with outdated parameters rehashes it.
func (s *CredentialStore) Authenticate(ctx context.Context, login, password string) (*Creator, error) {
	if err := checkPasswordLength(password); err != nil {
		return nil, err
	}

	var (
		creator *Creator
		err     error
	)
	if strings.Contains(login, "@") {
		creator, err = s.GetByEmail(ctx, login)
	} else {
		creator, err = s.GetByName(ctx, login)
	}
	if err != nil {
		if apierr.Is(err, apierr.NotFound) {
			_, _ = s.hasher.Verify(ctx, password, dummyPasswordHash)
		}
		return nil, err
	}

	if err := s.Verify(ctx, creator, password); err != nil {
		return nil, err
	}

	if s.hasher.NeedsUpgrade(creator.PasswordHash) {
		s.upgradeHash(ctx, creator, password)
	}
	return creator, nil
}

// upgradeHash rehashes with current parameters. The write only lands while
// the stored hash is still the one just verified. Failures are logged only.
func (s *CredentialStore) upgradeHash(ctx context.Context, creator *Creator, password string) {
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			"creator_id", creator.ID.String(), "operation", "hash", "error", err)
		return
	}
	verified := creator.PasswordHash
	updated, err := s.creators.Update(ctx, creator.ID, CreatorChanges{
		PasswordHash:   &hash,
		IfPasswordHash: &verified,
	})
	if errors.Is(err, ErrConflict) {
		s.logger.DebugContext(ctx, "password hash upgrade skipped, password changed concurrently",
			"creator_id", creator.ID.String())
		return
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			"creator_id", creator.ID.String(), "operation", "update", "error", err)
		return
	}
	*creator = *updated
}

// Update re-verifies the current password and then applies each present field
// of params. The new password, if any, is hashed before storage. Absent
// fields are never written, and the write only lands while the stored hash is
// the one the current password was verified against.
func (s *CredentialStore) Update(ctx context.Context, id ulid.ULID, params UpdateParams) (*Creator, error) {
	changes, err := s.prepareChanges(ctx, id, params)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		creator, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.Verify(ctx, creator, params.CurrentPassword); err != nil {
			return nil, err
		}

		verified := creator.PasswordHash
		changes.IfPasswordHash = &verified
		updated, err := s.creators.Update(ctx, id, changes)
		if errors.Is(err, ErrConflict) && attempt < maxUpdateAttempts {
			continue
		}
		if err != nil {
			return nil, updateFailure(id, err)
		}

		s.logger.InfoContext(ctx, "creator updated",
			"creator_id", id.String(),
			"email_changed", params.Email != nil,
			"password_changed", params.NewPassword != nil,
			"picture_changed", params.PictureRef != nil,
		)
		return updated, nil
	}
}

// prepareChanges validates params and hashes the new password.
func (s *CredentialStore) prepareChanges(ctx context.Context, id ulid.ULID, params UpdateParams) (CreatorChanges, error) {
	var changes CreatorChanges
	if params.Email != nil {
		if err := ValidateEmail(*params.Email); err != nil {
			return changes, err
		}
		email := *params.Email
		changes.Email = &email
	}
	if params.PictureRef != nil {
		if *params.PictureRef == "" {
			changes.ClearPicture = true
		} else {
			ref := *params.PictureRef
			changes.PictureRef = &ref
		}
	}
	if params.NewPassword != nil {
		if err := ValidatePassword(*params.NewPassword); err != nil {
			return changes, err
		}
		hash, err := s.hasher.Hash(ctx, *params.NewPassword)
		if err != nil {
			return changes, oops.Code("CREATOR_UPDATE_FAILED").
				With("operation", "hash password").
				With("creator_id", id.String()).
				Wrap(err)
		}
		changes.PasswordHash = &hash
	}
	return changes, nil
}

func updateFailure(id ulid.ULID, err error) error {
	switch {
	case errors.Is(err, ErrAlreadyExists):
		return oops.Code("CREATOR_EMAIL_TAKEN").
			With("creator_id", id.String()).
			Wrap(apierr.AlreadyExists.Wrap(err))
	case errors.Is(err, ErrNotFound):
		return oops.Code("CREATOR_NOT_FOUND").
			With("id", id.String()).
			Wrap(apierr.NotFound)
	case errors.Is(err, ErrConflict):
		// The password kept changing underneath; the presented one is stale.
		return invalidCredentials(id)
	default:
		return oops.Code("CREATOR_UPDATE_FAILED").
			With("operation", "persist creator").
			With("creator_id", id.String()).
			Wrap(apierr.Internal.Wrap(err))
	}
}

// DeleteByID removes a creator. Sessions are not revoked here; Accounts.Delete
// revokes them first in the same transaction.
func (s *CredentialStore) DeleteByID(ctx context.Context, id ulid.ULID) error {
	if err := s.creators.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("CREATOR_NOT_FOUND").With("id", id.String()).Wrap(apierr.NotFound)
		}
		return oops.Code("CREATOR_DELETE_FAILED").
			With("operation", "delete creator").
			With("id", id.String()).
			Wrap(apierr.Internal.Wrap(err))
	}

	s.logger.InfoContext(ctx, "creator deleted", "creator_id", id.String())
	return nil
}

// withRepository returns a copy of s backed by creators.
func (s *CredentialStore) withRepository(creators CreatorRepository) *CredentialStore {
	bound := *s
	bound.creators = creators
	return &bound
}
