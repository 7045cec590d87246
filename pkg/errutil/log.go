// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError with a context, so handlers that read the
// active span can correlate the record. The error kind is always logged.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	attrs := []any{"kind", string(apierr.KindOf(err))}
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if c := oopsErr.Context(); len(c) > 0 {
			attrs = append(attrs, "context", c)
		}
	} else {
		attrs = append(attrs, "error", err)
	}
	logger.ErrorContext(ctx, msg, attrs...)
}
