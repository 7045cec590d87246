// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/creatorhub/creatorhub/internal/auth"
	"github.com/creatorhub/creatorhub/internal/httpapi"
)

// memCreators is an in-memory auth.CreatorRepository with case-insensitive
// uniqueness on name and email.
type memCreators struct {
	mu   sync.Mutex
	rows map[ulid.ULID]auth.Creator
	err  error
}

func newMemCreators() *memCreators {
	return &memCreators{rows: map[ulid.ULID]auth.Creator{}}
}

func (m *memCreators) taken(c *auth.Creator) bool {
	for id, row := range m.rows {
		if id == c.ID {
			continue
		}
		if strings.EqualFold(row.Name, c.Name) || strings.EqualFold(row.Email, c.Email) {
			return true
		}
	}
	return false
}

func (m *memCreators) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memCreators) Create(_ context.Context, c *auth.Creator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.taken(c) {
		return auth.ErrAlreadyExists
	}
	m.rows[c.ID] = *c
	return nil
}

func (m *memCreators) find(match func(auth.Creator) bool) (*auth.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, row := range m.rows {
		if match(row) {
			c := row
			return &c, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memCreators) GetByID(_ context.Context, id ulid.ULID) (*auth.Creator, error) {
	return m.find(func(c auth.Creator) bool { return c.ID == id })
}

func (m *memCreators) GetByName(_ context.Context, name string) (*auth.Creator, error) {
	return m.find(func(c auth.Creator) bool { return strings.EqualFold(c.Name, name) })
}

func (m *memCreators) GetByEmail(_ context.Context, email string) (*auth.Creator, error) {
	return m.find(func(c auth.Creator) bool { return strings.EqualFold(c.Email, email) })
}

func (m *memCreators) LockByID(ctx context.Context, id ulid.ULID) (*auth.Creator, error) {
	return m.GetByID(ctx, id)
}

func (m *memCreators) Update(_ context.Context, id ulid.ULID, changes auth.CreatorChanges) (*auth.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	row, ok := m.rows[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if changes.IfPasswordHash != nil && *changes.IfPasswordHash != row.PasswordHash {
		return nil, auth.ErrConflict
	}
	if changes.Email != nil {
		row.Email = *changes.Email
	}
	if changes.PasswordHash != nil {
		row.PasswordHash = *changes.PasswordHash
	}
	switch {
	case changes.ClearPicture:
		row.PictureRef = nil
	case changes.PictureRef != nil:
		ref := *changes.PictureRef
		row.PictureRef = &ref
	}
	if m.taken(&row) {
		return nil, auth.ErrAlreadyExists
	}
	m.rows[id] = row
	return &row, nil
}

func (m *memCreators) Delete(_ context.Context, id ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// memSessions is an in-memory auth.SessionRepository.
type memSessions struct {
	mu   sync.Mutex
	rows map[uuid.UUID]auth.Session
}

func newMemSessions() *memSessions {
	return &memSessions{rows: map[uuid.UUID]auth.Session{}}
}

func (m *memSessions) Create(_ context.Context, s *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.Token] = *s
	return nil
}

func (m *memSessions) GetByToken(_ context.Context, token uuid.UUID) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &s, nil
}

func (m *memSessions) GetBySubject(_ context.Context, subject ulid.ULID) ([]*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auth.Session
	for _, s := range m.rows {
		if s.Subject == subject {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memSessions) deleteWhere(match func(auth.Session) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, s := range m.rows {
		if match(s) {
			delete(m.rows, token)
		}
	}
}

func (m *memSessions) DeleteByToken(_ context.Context, token uuid.UUID) error {
	m.deleteWhere(func(s auth.Session) bool { return s.Token == token })
	return nil
}

func (m *memSessions) DeleteBySubject(_ context.Context, subject ulid.ULID) error {
	m.deleteWhere(func(s auth.Session) bool { return s.Subject == subject })
	return nil
}

func (m *memSessions) DeleteBySubjectExcept(_ context.Context, subject ulid.ULID, keep uuid.UUID) error {
	m.deleteWhere(func(s auth.Session) bool { return s.Subject == subject && s.Token != keep })
	return nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memTx runs fn against the in-memory repositories without isolation.
type memTx struct {
	repos auth.Repositories
}

func (tx memTx) WithinTx(ctx context.Context, fn func(context.Context, auth.Repositories) error) error {
	return fn(ctx, tx.repos)
}

// memPictures records uploads.
type memPictures struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemPictures() *memPictures {
	return &memPictures{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memPictures) Put(_ context.Context, key, purpose, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if purpose != "pfp" {
		return "", errors.New("unexpected purpose " + purpose)
	}
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return key, nil
}

func (m *memPictures) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memPictures) contentType(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[key]
}

func (m *memPictures) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// recorder captures metrics calls.
type recorder struct {
	mu       sync.Mutex
	requests []string
	events   map[string]int
	uploads  map[string]int
}

func newRecorder() *recorder {
	return &recorder{events: map[string]int{}, uploads: map[string]int{}}
}

func (r *recorder) ObserveRequest(route, method string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, method+" "+route+" "+http.StatusText(status))
}

func (r *recorder) RecordAuthEvent(event, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event+"/"+outcome]++
}

func (r *recorder) RecordUpload(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads[outcome]++
}

func (r *recorder) observed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

func (r *recorder) event(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[key]
}

// cheapParams keep argon2 fast in tests.
var cheapParams = auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

type testEnv struct {
	server   *httptest.Server
	creators *memCreators
	sessions *memSessions
	pictures *memPictures
	metrics  *recorder
	logs     *logBuffer
}

type envOption func(*httpapi.Deps)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		creators: newMemCreators(),
		sessions: newMemSessions(),
		pictures: newMemPictures(),
		metrics:  newRecorder(),
		logs:     &logBuffer{},
	}
	logger := slog.New(slog.NewJSONHandler(env.logs, nil))

	deps := coreDeps(t, env.creators, env.sessions, logger)
	deps.Pictures = env.pictures
	deps.Metrics = env.metrics
	deps.Logger = logger
	deps.Build = "1.4.2"
	deps.LoginRate = rate.Inf
	deps.LoginBurst = 1
	for _, opt := range opts {
		opt(&deps)
	}

	handler, err := httpapi.NewRouter(deps)
	require.NoError(t, err)

	env.server = httptest.NewServer(handler)
	t.Cleanup(env.server.Close)
	return env
}

// coreDeps wires real stores over in-memory repositories.
func coreDeps(t *testing.T, creators auth.CreatorRepository, sessionRepo auth.SessionRepository, logger *slog.Logger) httpapi.Deps {
	t.Helper()
	pool := auth.NewPooledHasher(auth.NewArgon2idHasherWithParams(cheapParams), 2)
	creds, err := auth.NewCredentialStoreWithLogger(creators, pool, logger)
	require.NoError(t, err)
	sessions, err := auth.NewSessionStoreWithLogger(sessionRepo, logger)
	require.NoError(t, err)
	authn, err := auth.NewAuthenticator(sessions)
	require.NoError(t, err)
	tx := memTx{repos: auth.Repositories{Creators: creators, Sessions: sessionRepo}}
	accounts, err := auth.NewAccountsWithLogger(creds, sessions, tx, logger)
	require.NoError(t, err)
	return httpapi.Deps{Credentials: creds, Sessions: sessions, Accounts: accounts, Authenticator: authn}
}

func minimalDeps(t *testing.T) httpapi.Deps {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	deps := coreDeps(t, newMemCreators(), newMemSessions(), logger)
	deps.Pictures = newMemPictures()
	deps.Logger = logger
	return deps
}

// logBuffer is a bytes.Buffer safe for concurrent handlers.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *logBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) errorKind(t *testing.T) string {
	t.Helper()
	var body httpapi.ErrorBody
	require.NoError(t, json.Unmarshal(r.body, &body), "body: %s", r.body)
	return body.Error
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), "body: %s", r.body)
}

func (e *testEnv) do(t *testing.T, method, path, token, contentType string, body io.Reader) response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, e.server.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: data}
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	return e.do(t, method, path, token, "application/json", reader)
}

// signup registers a creator and returns its token.
func (e *testEnv) signup(t *testing.T, name, email, password string) string {
	t.Helper()
	resp := e.doJSON(t, http.MethodPost, "/creator/signup", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.status, "signup: %s", resp.body)
	var tok httpapi.TokenResponse
	resp.decode(t, &tok)
	return tok.Token.String()
}

type part struct {
	field       string
	contentType string
	data        string
}

func multipartBody(t *testing.T, parts ...part) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		header := make(map[string][]string)
		disposition := `form-data; name="` + p.field + `"`
		if p.field == "file" {
			disposition += `; filename="picture.png"`
		}
		header["Content-Disposition"] = []string{disposition}
		if p.contentType != "" {
			header["Content-Type"] = []string{p.contentType}
		}
		w, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &buf
}
