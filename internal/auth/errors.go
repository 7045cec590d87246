// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

// Repository sentinels. Implementations wrap these so services can branch
// with errors.Is without depending on a storage driver.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound error = apierr.NotFound

	// ErrAlreadyExists is returned when a write violates a uniqueness constraint.
	ErrAlreadyExists error = apierr.AlreadyExists

	// ErrConflict is returned when a guarded write finds the row changed
	// since it was read.
	ErrConflict = errors.New("creator changed concurrently")
)

func badRequest(code, msg string) error {
	return oops.Code(code).Wrap(apierr.BadRequest.Wrap(errors.New(msg)))
}
