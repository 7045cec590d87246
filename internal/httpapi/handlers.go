// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/apierr"
	"github.com/creatorhub/creatorhub/internal/auth"
	"github.com/creatorhub/creatorhub/internal/objstore"
)

// APIVersion is the version of the wire contract.
const APIVersion = "v1"

// Auth event names recorded in metrics.
const (
	eventSignup       = "signup"
	eventLogin        = "login"
	eventLogout       = "logout"
	eventAuthenticate = "authenticate"
	eventUpdate       = "update"
	eventRevoke       = "revoke_sessions"
	eventDelete       = "delete"
)

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	Version string `json:"version"`
	Build   string `json:"build"`
}

// TokenResponse carries a freshly issued session token.
type TokenResponse struct {
	Token uuid.UUID `json:"token"`
}

// CreatorView is the public form of a creator. It never carries the hash.
type CreatorView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	PictureRef *string   `json:"picture_ref"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionView describes one session of the caller without its token.
type SessionView struct {
	CreatedAt time.Time `json:"created_at"`
	Current   bool      `json:"current"`
}

// PictureResponse is the body of POST /creator/pfp.
type PictureResponse struct {
	PictureRef string `json:"picture_ref"`
}

func newCreatorView(c *auth.Creator) CreatorView {
	return CreatorView{
		ID:         c.ID.String(),
		Name:       c.Name,
		Email:      c.Email,
		PictureRef: c.PictureRef,
		CreatedAt:  c.CreatedAt,
	}
}

// buildVersion normalizes a semantic build version to its canonical "vX.Y.Z"
// form. Other strings, such as "dev", are reported unchanged.
func buildVersion(raw string) string {
	if raw == "" {
		return "dev"
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return raw
	}
	return "v" + v.String()
}

type handlers struct {
	creds          CredentialService
	sessions       SessionService
	accounts       AccountService
	authn          RequestAuthenticator
	pictures       PictureStore
	metrics        Recorder
	logger         *slog.Logger
	validator      *validator
	build          string
	maxUploadBytes int64
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apierr.KindOf(err))
}

// fail records a failed auth event and writes the error.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, event string, err error) {
	h.metrics.RecordAuthEvent(event, outcome(err))
	writeError(w, r, h.logger, err)
}

// authenticate resolves the caller's session or writes the failure.
func (h *handlers) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	session, err := h.authn.Authenticate(r.Context(), r.Header)
	if err != nil {
		h.fail(w, r, eventAuthenticate, err)
		return nil, false
	}
	return session, true
}

func (h *handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: APIVersion, Build: h.build})
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := h.validator.decodeBody(r.Body, &req); err != nil {
		h.fail(w, r, eventSignup, err)
		return
	}

	creator, err := h.creds.Create(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, eventSignup, err)
		return
	}
	session, err := h.sessions.Create(r.Context(), creator.ID)
	if err != nil {
		h.fail(w, r, eventSignup, err)
		return
	}

	h.metrics.RecordAuthEvent(eventSignup, outcome(nil))
	writeJSON(w, http.StatusOK, TokenResponse{Token: session.Token})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.validator.decodeBody(r.Body, &req); err != nil {
		h.fail(w, r, eventLogin, err)
		return
	}

	login := req.Name
	if req.Email != "" {
		login = req.Email
	}

	creator, err := h.creds.Authenticate(r.Context(), login, req.Password)
	if err != nil {
		h.fail(w, r, eventLogin, err)
		return
	}
	session, err := h.sessions.Create(r.Context(), creator.ID)
	if err != nil {
		h.fail(w, r, eventLogin, err)
		return
	}

	h.metrics.RecordAuthEvent(eventLogin, outcome(nil))
	writeJSON(w, http.StatusOK, TokenResponse{Token: session.Token})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if err := h.sessions.RemoveByToken(r.Context(), session.Token); err != nil {
		h.fail(w, r, eventLogout, err)
		return
	}
	h.metrics.RecordAuthEvent(eventLogout, outcome(nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	creator, err := h.creds.GetByID(r.Context(), session.Subject)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newCreatorView(creator))
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	sessions, err := h.sessions.GetBySubject(r.Context(), session.Subject)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, SessionView{CreatedAt: s.CreatedAt, Current: s.Token == session.Token})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handlers) revokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if err := h.sessions.RevokeOthers(r.Context(), session); err != nil {
		h.fail(w, r, eventRevoke, err)
		return
	}
	h.metrics.RecordAuthEvent(eventRevoke, outcome(nil))
	w.WriteHeader(http.StatusNoContent)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/")
}

func (h *handlers) update(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var (
		req  UpdateRequest
		file *filePart
	)
	if isMultipart(r) {
		form, err := h.readMultipart(w, r, true)
		if err != nil {
			h.fail(w, r, eventUpdate, err)
			return
		}
		if err := h.validator.decode(form.data, &req); err != nil {
			h.fail(w, r, eventUpdate, err)
			return
		}
		file = form.file
	} else if err := h.validator.decodeBody(r.Body, &req); err != nil {
		h.fail(w, r, eventUpdate, err)
		return
	}

	params := auth.UpdateParams{
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		PictureRef:      req.PictureRef,
	}

	if file != nil {
		// The password is checked before any bytes are stored.
		creator, err := h.creds.GetByID(r.Context(), session.Subject)
		if err != nil {
			h.fail(w, r, eventUpdate, err)
			return
		}
		if err := h.creds.Verify(r.Context(), creator, req.CurrentPassword); err != nil {
			h.fail(w, r, eventUpdate, err)
			return
		}
		ref, err := h.storePicture(r, session, file)
		if err != nil {
			h.fail(w, r, eventUpdate, err)
			return
		}
		params.PictureRef = &ref
	}

	creator, err := h.creds.Update(r.Context(), session.Subject, params)
	if err != nil {
		h.fail(w, r, eventUpdate, err)
		return
	}

	h.metrics.RecordAuthEvent(eventUpdate, outcome(nil))
	writeJSON(w, http.StatusOK, newCreatorView(creator))
}

func (h *handlers) uploadPicture(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if !isMultipart(r) {
		writeError(w, r, h.logger, oops.Code("UPLOAD_NOT_MULTIPART").
			Wrap(apierr.BadRequest.Wrap(errors.New("expected a multipart body"))))
		return
	}

	form, err := h.readMultipart(w, r, false)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if form.file == nil {
		writeError(w, r, h.logger, oops.Code("UPLOAD_MISSING_FILE").
			Wrap(apierr.BadRequest.Wrap(errors.New("multipart body has no file part"))))
		return
	}

	ref, err := h.storePicture(r, session, form.file)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PictureResponse{PictureRef: ref})
}

// storePicture uploads the caller's picture under its fixed key.
func (h *handlers) storePicture(r *http.Request, session *auth.Session, file *filePart) (string, error) {
	key := objstore.PictureKey(session.Subject)
	ref, err := h.pictures.Put(r.Context(), key, objstore.PurposePicture, file.contentType, file.data)
	if err != nil {
		h.metrics.RecordUpload("error")
		return "", oops.Code("UPLOAD_FAILED").
			With("subject", session.Subject.String()).
			Wrap(apierr.Internal.Wrap(err))
	}
	h.metrics.RecordUpload("ok")
	return ref, nil
}

func (h *handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req DeleteRequest
	if err := h.validator.decodeBody(r.Body, &req); err != nil {
		h.fail(w, r, eventDelete, err)
		return
	}

	if err := h.accounts.Delete(r.Context(), session.Subject, req.Password); err != nil {
		h.fail(w, r, eventDelete, err)
		return
	}

	h.metrics.RecordAuthEvent(eventDelete, outcome(nil))
	w.WriteHeader(http.StatusNoContent)
}
