// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/creatorhub/creatorhub/internal/apierr"
	"github.com/creatorhub/creatorhub/pkg/errutil"
)

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// tooManyRequests is the wire name of a throttled sign-in. It is produced
// only by the rate limiter, never by the core.
const tooManyRequests = "TOO_MANY_REQUESTS"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(v)
}

// writeError writes the kind of err and nothing else. Internal errors are
// logged in full first.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apierr.KindOf(err)
	if kind == apierr.Internal {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	}
	writeJSON(w, kind.Status(), ErrorBody{Error: string(kind)})
}
