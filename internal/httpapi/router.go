// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

// Package httpapi exposes the Creatorhub account API over HTTP.
//
// Protected handlers call the request authenticator first and authorize by
// the session subject only. Errors are written as {"error":"<KIND>"}.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/creatorhub/creatorhub/internal/apierr"
	"github.com/creatorhub/creatorhub/internal/auth"
)

// CredentialService is the creator side of the core.
type CredentialService interface {
	Create(ctx context.Context, name, email, password string) (*auth.Creator, error)
	Authenticate(ctx context.Context, login, password string) (*auth.Creator, error)
	GetByID(ctx context.Context, id ulid.ULID) (*auth.Creator, error)
	Verify(ctx context.Context, creator *auth.Creator, password string) error
	Update(ctx context.Context, id ulid.ULID, params auth.UpdateParams) (*auth.Creator, error)
}

// SessionService is the session side of the core.
type SessionService interface {
	Create(ctx context.Context, subject ulid.ULID) (*auth.Session, error)
	GetBySubject(ctx context.Context, subject ulid.ULID) ([]*auth.Session, error)
	RemoveByToken(ctx context.Context, token uuid.UUID) error
	RevokeOthers(ctx context.Context, keep *auth.Session) error
}

// AccountService removes a creator together with its sessions.
type AccountService interface {
	Delete(ctx context.Context, id ulid.ULID, password string) error
}

// RequestAuthenticator resolves request headers to a session.
type RequestAuthenticator interface {
	Authenticate(ctx context.Context, header http.Header) (*auth.Session, error)
}

// PictureStore stores uploaded picture bytes.
type PictureStore interface {
	Put(ctx context.Context, key, purpose, contentType string, data []byte) (string, error)
}

// Recorder receives request and auth metrics.
type Recorder interface {
	ObserveRequest(route, method string, status int, d time.Duration)
	RecordAuthEvent(event, outcome string)
	RecordUpload(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, string, int, time.Duration) {}
func (nopRecorder) RecordAuthEvent(string, string)                    {}
func (nopRecorder) RecordUpload(string)                               {}

// Default limits.
const (
	DefaultMaxUploadBytes = 8 << 20
	DefaultLoginRate      = rate.Limit(1)
	DefaultLoginBurst     = 5
)

// Deps holds the collaborators of the router. Credentials, Sessions,
// Accounts, Authenticator and Pictures are required.
type Deps struct {
	Credentials   CredentialService
	Sessions      SessionService
	Accounts      AccountService
	Authenticator RequestAuthenticator
	Pictures      PictureStore

	// Optional.
	Metrics        Recorder
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator

	// Build is the server build version reported by /version.
	Build          string
	CORSOrigins    []string
	MaxUploadBytes int64
	LoginRate      rate.Limit
	LoginBurst     int
}

// NewRouter builds the API handler.
func NewRouter(deps Deps) (http.Handler, error) {
	switch {
	case deps.Credentials == nil:
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("credential service is required")
	case deps.Sessions == nil:
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("session service is required")
	case deps.Accounts == nil:
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("account service is required")
	case deps.Authenticator == nil:
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("authenticator is required")
	case deps.Pictures == nil:
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("picture store is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.TracerProvider == nil {
		deps.TracerProvider = otel.GetTracerProvider()
	}
	if deps.Propagator == nil {
		deps.Propagator = otel.GetTextMapPropagator()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if deps.LoginRate <= 0 {
		deps.LoginRate = DefaultLoginRate
	}
	if deps.LoginBurst <= 0 {
		deps.LoginBurst = DefaultLoginBurst
	}

	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	origins, err := newOriginMatcher(deps.CORSOrigins)
	if err != nil {
		return nil, err
	}
	limiter := newSignInLimiter(deps.LoginRate, deps.LoginBurst)

	h := &handlers{
		creds:          deps.Credentials,
		sessions:       deps.Sessions,
		accounts:       deps.Accounts,
		authn:          deps.Authenticator,
		pictures:       deps.Pictures,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		validator:      v,
		build:          buildVersion(deps.Build),
		maxUploadBytes: deps.MaxUploadBytes,
	}

	r := chi.NewRouter()
	r.Use(instrument(deps.TracerProvider, deps.Propagator, deps.Metrics, deps.Logger))
	r.Use(recoverer(deps.Logger))
	r.Use(cors(origins))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, apierr.NotFound.Status(), ErrorBody{Error: string(apierr.NotFound)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, apierr.BadRequest.Status(), ErrorBody{Error: string(apierr.BadRequest)})
	})

	r.Get("/version", h.version)

	r.Route("/creator", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.middleware(deps.Logger))
			r.Post("/signup", h.signup)
			r.Post("/login", h.login)
		})

		r.Post("/logout", h.logout)
		r.Get("/me", h.me)
		r.Get("/sessions", h.listSessions)
		r.Delete("/sessions", h.revokeOtherSessions)
		r.Post("/update", h.update)
		r.Post("/pfp", h.uploadPicture)
		r.Delete("/delete", h.deleteAccount)
	})

	return r, nil
}
