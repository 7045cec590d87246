// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

// Package apierr defines the closed set of failure kinds shared by the
// credential and session subsystem and their mapping to HTTP status codes.
//
// A Kind is itself an error, so it can be wrapped as a sentinel:
//
//	oops.Code("CREATOR_NOT_FOUND").Wrap(apierr.NotFound)
//
// or attached to an underlying failure while keeping that failure reachable:
//
//	apierr.Internal.Wrap(err)
//
// KindOf walks the wrap chain and reports the outermost Kind it finds.
// Errors that carry no Kind are InternalError.
package apierr

import (
	"errors"
	"net/http"
)

// Kind is a boundary-visible failure category.
type Kind string

// The closed set of kinds.
const (
	AlreadyExists Kind = "ALREADY_EXISTS"
	BadRequest    Kind = "BAD_REQUEST"
	Unauthorized  Kind = "UNAUTHORIZED"
	NotFound      Kind = "NOT_FOUND"
	Internal      Kind = "INTERNAL_SERVER_ERROR"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{AlreadyExists, BadRequest, Unauthorized, NotFound, Internal}

// Error implements the error interface so a Kind can be used as a sentinel.
func (k Kind) Error() string {
	return string(k)
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case AlreadyExists:
		return http.StatusConflict
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Wrap attaches the kind to err. The returned error matches both the kind
// and err under errors.Is. Wrap returns nil when err is nil.
func (k Kind) Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: k, err: err}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string {
	return string(e.kind) + ": " + e.err.Error()
}

func (e *kindError) Unwrap() error {
	return e.err
}

func (e *kindError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.kind
}

// KindOf returns the outermost kind attached to err, or Internal if none is.
// KindOf(nil) is the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case Kind:
			return v
		case *kindError:
			return v.kind
		}
	}
	// Joined errors do not expose a single Unwrap chain.
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return Internal
}

// Is reports whether err classifies as kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
