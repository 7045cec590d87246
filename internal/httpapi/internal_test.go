// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/creatorhub/creatorhub/internal/apierr"
	"github.com/creatorhub/creatorhub/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	assert.Equal(t, []string{"delete", "login", "signup", "update"}, SchemaNames())

	for _, name := range SchemaNames() {
		t.Run(name, func(t *testing.T) {
			data, err := GenerateSchema(name)
			require.NoError(t, err)

			var doc map[string]any
			require.NoError(t, json.Unmarshal(data, &doc))
			assert.Equal(t, SchemaIDBase+name+".json", doc["$id"])
			assert.Equal(t, "object", doc["type"])
			assert.Equal(t, false, doc["additionalProperties"])
		})
	}

	_, err := GenerateSchema("nope")
	errutil.AssertErrorCode(t, err, "SCHEMA_UNKNOWN")
}

func TestGenerateSchema_UpdateRequiresOnlyCurrentPassword(t *testing.T) {
	data, err := GenerateSchema("update")
	require.NoError(t, err)

	var doc struct {
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []string{"current_password"}, doc.Required)
}

func TestValidator_Decode(t *testing.T) {
	v, err := newValidator()
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		var req UpdateRequest
		require.NoError(t, v.decode([]byte(`{"current_password":"pw","email":"a@b.c"}`), &req))
		assert.Equal(t, "pw", req.CurrentPassword)
		require.NotNil(t, req.Email)
		assert.Equal(t, "a@b.c", *req.Email)
		assert.Nil(t, req.NewPassword)
		assert.Nil(t, req.PictureRef)
	})

	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"malformed json", `{"current_password":`, "REQUEST_MALFORMED"},
		{"missing required", `{}`, "REQUEST_INVALID"},
		{"wrong type", `{"current_password":42}`, "REQUEST_INVALID"},
		{"extra field", `{"current_password":"pw","role":"admin"}`, "REQUEST_INVALID"},
		{"not an object", `["pw"]`, "REQUEST_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateRequest
			err := v.decode([]byte(tt.raw), &req)
			errutil.AssertErrorCode(t, err, tt.code)
			errutil.AssertKind(t, err, apierr.BadRequest)
		})
	}

	t.Run("unregistered type", func(t *testing.T) {
		var other struct{ X int }
		err := v.decode([]byte(`{}`), &other)
		errutil.AssertKind(t, err, apierr.Internal)
	})

	t.Run("body too large", func(t *testing.T) {
		var req DeleteRequest
		body := `{"password":"` + strings.Repeat("x", maxJSONBytes) + `"}`
		err := v.decodeBody(strings.NewReader(body), &req)
		errutil.AssertErrorCode(t, err, "REQUEST_TOO_LARGE")
	})
}

func TestOriginMatcher(t *testing.T) {
	m, err := newOriginMatcher([]string{"https://*.example.com", "https://creatorhub.dev"})
	require.NoError(t, err)

	assert.True(t, m.match("https://app.example.com"))
	assert.True(t, m.match("https://creatorhub.dev"))
	assert.False(t, m.match("https://app.example.com.evil.net"))
	assert.False(t, m.match("http://app.example.com"))
	assert.False(t, m.match("https://creatorhub.dev.evil.net"))

	empty, err := newOriginMatcher(nil)
	require.NoError(t, err)
	assert.False(t, empty.match("https://app.example.com"))
}

func TestSignInLimiter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newSignInLimiter(rate.Every(time.Minute), 2)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"), "clients are limited independently")

	now = now.Add(time.Minute)
	assert.True(t, l.allow("10.0.0.1"), "a token refills after the interval")
	assert.Equal(t, "60", l.retryAfter())

	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, l.allow("10.0.0.3"))
	assert.Equal(t, 1, l.size(), "idle clients are swept")
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/creator/login", nil)
	r.RemoteAddr = "192.0.2.7:51234"
	assert.Equal(t, "192.0.2.7", clientKey(r))

	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientKey(r))
}

func TestRecoverer(t *testing.T) {
	handler := recoverer(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"INTERNAL_SERVER_ERROR"}`, rec.Body.String())
}

func TestBuildVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", buildVersion("1.2.3"))
	assert.Equal(t, "v1.2.0", buildVersion("v1.2"))
	assert.Equal(t, "abc123", buildVersion("abc123"))
	assert.Equal(t, "dev", buildVersion(""))
}
