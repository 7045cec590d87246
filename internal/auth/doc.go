// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

// Package auth provides the credential and session primitives of Creatorhub.
//
// # Domain Types
//
// Creator and Session should be created with their constructors:
//   - NewCreator - validates name and email and takes an already computed hash
//   - NewSession - mints a fresh random token for a subject
//
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
//   - CredentialStore - signup, lookups, password verification, coalescing updates, deletion
//   - SessionStore - token issue, lookup and revocation
//   - Authenticator - resolves the Authorization header of a request to a Session
//
// Password hashing runs through a HashPool so that argon2 work is bounded
// independently of request concurrency.
//
// Every error returned by a service carries exactly one apierr.Kind.
package auth
