// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

//go:build integration

package api_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/creatorhub/creatorhub/internal/httpapi"
)

// call sends a JSON request and decodes the response body into out when
// out is non-nil.
func call(method, path, token string, body any, out any) int {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, env.server.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return send(req, token, out)
}

func send(req *http.Request, token string, out any) int {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}
	return resp.StatusCode
}

func signup(name, email, password string) string {
	var tok httpapi.TokenResponse
	status := call(http.MethodPost, "/creator/signup", "", map[string]string{
		"name": name, "email": email, "password": password,
	}, &tok)
	Expect(status).To(Equal(http.StatusOK))
	return tok.Token.String()
}

var _ = Describe("Creator accounts", func() {
	BeforeEach(func() {
		cleanupDatabase(env.ctx, env.pool)
	})

	It("serves the version", func() {
		var v httpapi.VersionResponse
		Expect(call(http.MethodGet, "/version", "", nil, &v)).To(Equal(http.StatusOK))
		Expect(v.Version).To(Equal("v1"))
		Expect(v.Build).To(Equal("v1.0.0"))
	})

	It("runs the sign-up, sign-in and password change flow", func() {
		token := signup("alice", "alice@example.com", "hunter2")

		var me httpapi.CreatorView
		Expect(call(http.MethodGet, "/creator/me", token, nil, &me)).To(Equal(http.StatusOK))
		Expect(me.Name).To(Equal("alice"))
		Expect(me.Email).To(Equal("alice@example.com"))

		Expect(call(http.MethodPost, "/creator/login", "", map[string]string{
			"name": "alice", "password": "wrong",
		}, nil)).To(Equal(http.StatusUnauthorized))

		var second httpapi.TokenResponse
		Expect(call(http.MethodPost, "/creator/login", "", map[string]string{
			"email": "ALICE@example.com", "password": "hunter2",
		}, &second)).To(Equal(http.StatusOK))

		Expect(call(http.MethodPost, "/creator/update", token, map[string]any{
			"current_password": "hunter2",
			"new_password":     "correct horse",
		}, nil)).To(Equal(http.StatusOK))

		Expect(call(http.MethodPost, "/creator/login", "", map[string]string{
			"name": "alice", "password": "hunter2",
		}, nil)).To(Equal(http.StatusUnauthorized))
		Expect(call(http.MethodPost, "/creator/login", "", map[string]string{
			"name": "alice", "password": "correct horse",
		}, nil)).To(Equal(http.StatusOK))
	})

	It("lets exactly one of two concurrent sign-ups claim a name", func() {
		statuses := make([]int, 2)
		var wg sync.WaitGroup
		for i := range statuses {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				statuses[i] = call(http.MethodPost, "/creator/signup", "", map[string]string{
					"name":     "bob",
					"email":    []string{"bob1@example.com", "bob2@example.com"}[i],
					"password": "pw",
				}, nil)
			}(i)
		}
		wg.Wait()

		Expect(statuses).To(ConsistOf(http.StatusOK, http.StatusConflict))
	})

	It("revokes sessions on logout and on revoking others", func() {
		first := signup("carol", "carol@example.com", "pw")
		var second httpapi.TokenResponse
		Expect(call(http.MethodPost, "/creator/login", "", map[string]string{
			"name": "carol", "password": "pw",
		}, &second)).To(Equal(http.StatusOK))

		var sessions []httpapi.SessionView
		Expect(call(http.MethodGet, "/creator/sessions", first, nil, &sessions)).To(Equal(http.StatusOK))
		Expect(sessions).To(HaveLen(2))

		Expect(call(http.MethodDelete, "/creator/sessions", first, nil, nil)).To(Equal(http.StatusNoContent))
		Expect(call(http.MethodGet, "/creator/me", second.Token.String(), nil, nil)).To(Equal(http.StatusUnauthorized))

		Expect(call(http.MethodPost, "/creator/logout", first, nil, nil)).To(Equal(http.StatusNoContent))
		Expect(call(http.MethodGet, "/creator/me", first, nil, nil)).To(Equal(http.StatusUnauthorized))
	})

	It("stores an uploaded picture and records its reference on update", func() {
		token := signup("dave", "dave@example.com", "pw")

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
		header.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(header)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("\x89PNG fake"))
		Expect(err).NotTo(HaveOccurred())
		Expect(mw.Close()).To(Succeed())

		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/creator/pfp", &buf)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", mw.FormDataContentType())
		var pic httpapi.PictureResponse
		Expect(send(req, token, &pic)).To(Equal(http.StatusOK))

		obj, ok := env.bucket.get(pic.PictureRef)
		Expect(ok).To(BeTrue())
		Expect(*obj.Bucket).To(Equal("pictures"))
		Expect(obj.Metadata).To(HaveKeyWithValue("purpose", "pfp"))

		var me httpapi.CreatorView
		Expect(call(http.MethodGet, "/creator/me", token, nil, &me)).To(Equal(http.StatusOK))
		Expect(me.PictureRef).To(BeNil(), "upload alone does not modify the creator")

		Expect(call(http.MethodPost, "/creator/update", token, map[string]any{
			"current_password": "pw",
			"picture_ref":      pic.PictureRef,
		}, &me)).To(Equal(http.StatusOK))
		Expect(me.PictureRef).NotTo(BeNil())
		Expect(*me.PictureRef).To(Equal(pic.PictureRef))
	})

	It("deletes the account and every session", func() {
		token := signup("erin", "erin@example.com", "pw")

		Expect(call(http.MethodDelete, "/creator/delete", token, map[string]string{
			"password": "wrong",
		}, nil)).To(Equal(http.StatusUnauthorized))
		Expect(call(http.MethodDelete, "/creator/delete", token, map[string]string{
			"password": "pw",
		}, nil)).To(Equal(http.StatusNoContent))

		Expect(call(http.MethodGet, "/creator/me", token, nil, nil)).To(Equal(http.StatusUnauthorized))
		Expect(call(http.MethodPost, "/creator/login", "", map[string]string{
			"name": "erin", "password": "pw",
		}, nil)).To(Equal(http.StatusNotFound))

		// The name is free again.
		signup("erin", "erin@example.com", "pw")
	})
})
