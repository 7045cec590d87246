// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package httpapi

import (
	"net/http"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

const (
	corsAllowMethods = "GET, POST, DELETE, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type"
	corsMaxAge       = "86400"
)

// originMatcher matches request origins against glob patterns such as
// "https://*.example.com".
type originMatcher struct {
	patterns []glob.Glob
}

func newOriginMatcher(patterns []string) (*originMatcher, error) {
	m := &originMatcher{patterns: make([]glob.Glob, 0, len(patterns))}
	for _, p := range patterns {
		// '.' separates host labels, so '*' does not span them.
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, oops.Code("CORS_PATTERN_INVALID").With("pattern", p).Wrap(err)
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

func (m *originMatcher) match(origin string) bool {
	for _, g := range m.patterns {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// cors echoes allowed origins and answers preflight requests. Requests from
// other origins pass through without CORS headers.
func cors(m *originMatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !m.match(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
