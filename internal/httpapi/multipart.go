// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

// Multipart field names.
const (
	dataField = "data"
	fileField = "file"
)

type filePart struct {
	contentType string
	data        []byte
}

type multipartForm struct {
	data []byte
	file *filePart
}

// readMultipart streams the request parts, keeping the first "data" and
// "file" parts and skipping the rest. The whole body is capped at
// maxUploadBytes. The file's declared content type is kept as sent.
func (h *handlers) readMultipart(w http.ResponseWriter, r *http.Request, requireData bool) (*multipartForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, oops.Code("MULTIPART_MALFORMED").Wrap(apierr.BadRequest.Wrap(err))
	}

	form := &multipartForm{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, multipartReadError(err)
		}

		switch part.FormName() {
		case dataField:
			if form.data != nil {
				continue
			}
			form.data, err = io.ReadAll(part)
			if err != nil {
				return nil, multipartReadError(err)
			}
		case fileField:
			if form.file != nil {
				continue
			}
			data, err := io.ReadAll(part)
			if err != nil {
				return nil, multipartReadError(err)
			}
			form.file = &filePart{contentType: part.Header.Get("Content-Type"), data: data}
		}
		_ = part.Close()
	}

	if requireData && form.data == nil {
		return nil, oops.Code("MULTIPART_MISSING_DATA").
			Wrap(apierr.BadRequest.Wrap(errors.New("multipart body has no data part")))
	}
	return form, nil
}

func multipartReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return oops.Code("UPLOAD_TOO_LARGE").
			With("limit", tooLarge.Limit).
			Wrap(apierr.BadRequest.Wrap(err))
	}
	return oops.Code("MULTIPART_MALFORMED").Wrap(apierr.BadRequest.Wrap(err))
}
