// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/creatorhub/creatorhub/internal/apierr"
)

// SchemaIDBase prefixes the $id of every request schema.
const SchemaIDBase = "https://creatorhub.dev/schemas/api/"

// maxJSONBytes bounds plain JSON request bodies.
const maxJSONBytes = 1 << 20

// SignupRequest is the body of POST /creator/signup.
type SignupRequest struct {
	Name     string `json:"name" jsonschema:"minLength=1"`
	Email    string `json:"email" jsonschema:"minLength=1"`
	Password string `json:"password" jsonschema:"minLength=1"`
}

// LoginRequest is the body of POST /creator/login. Exactly one of Name and
// Email identifies the creator.
type LoginRequest struct {
	Name     string `json:"name,omitempty" jsonschema:"oneof_required=by_name,minLength=1"`
	Email    string `json:"email,omitempty" jsonschema:"oneof_required=by_email,minLength=1"`
	Password string `json:"password" jsonschema:"minLength=1"`
}

// UpdateRequest is the body, or the "data" part, of POST /creator/update.
type UpdateRequest struct {
	Email           *string `json:"email,omitempty"`
	CurrentPassword string  `json:"current_password" jsonschema:"minLength=1"`
	NewPassword     *string `json:"new_password,omitempty"`
	PictureRef      *string `json:"picture_ref,omitempty"`
}

// DeleteRequest is the body of DELETE /creator/delete.
type DeleteRequest struct {
	Password string `json:"password" jsonschema:"minLength=1"`
}

// requestTypes lists every request body with its schema name.
var requestTypes = map[string]any{
	"signup": &SignupRequest{},
	"login":  &LoginRequest{},
	"update": &UpdateRequest{},
	"delete": &DeleteRequest{},
}

// SchemaNames returns the names of the request schemas in sorted order.
func SchemaNames() []string {
	names := make([]string, 0, len(requestTypes))
	for name := range requestTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerateSchema renders the JSON Schema of the named request body.
func GenerateSchema(name string) ([]byte, error) {
	v, ok := requestTypes[name]
	if !ok {
		return nil, oops.Code("SCHEMA_UNKNOWN").With("name", name).Errorf("unknown request schema %q", name)
	}

	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(v)
	schema.ID = jsonschema.ID(SchemaIDBase + name + ".json")
	schema.Title = "Creatorhub " + name + " request"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_MARSHAL_FAILED").With("name", name).Wrap(err)
	}
	return data, nil
}

// validator checks request bodies against their compiled schemas.
type validator struct {
	schemas map[reflect.Type]*jschema.Schema
}

func newValidator() (*validator, error) {
	c := jschema.NewCompiler()
	urls := make(map[string]string, len(requestTypes))
	for name := range requestTypes {
		data, err := GenerateSchema(name)
		if err != nil {
			return nil, err
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("name", name).Wrap(err)
		}
		url := SchemaIDBase + name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("name", name).Wrap(err)
		}
		urls[name] = url
	}

	v := &validator{schemas: make(map[reflect.Type]*jschema.Schema, len(requestTypes))}
	for name, url := range urls {
		sch, err := c.Compile(url)
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("name", name).Wrap(err)
		}
		v.schemas[reflect.TypeOf(requestTypes[name])] = sch
	}
	return v, nil
}

// decode validates raw against the schema of dst's type and then decodes it
// into dst. Any failure is BadRequest.
func (v *validator) decode(raw []byte, dst any) error {
	sch, ok := v.schemas[reflect.TypeOf(dst)]
	if !ok {
		return oops.Code("SCHEMA_UNKNOWN").
			With("type", reflect.TypeOf(dst).String()).
			Wrap(apierr.Internal.Wrap(errors.New("no schema registered for request type")))
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return oops.Code("REQUEST_MALFORMED").Wrap(apierr.BadRequest.Wrap(err))
	}
	if err := sch.Validate(doc); err != nil {
		return oops.Code("REQUEST_INVALID").Wrap(apierr.BadRequest.Wrap(err))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return oops.Code("REQUEST_MALFORMED").Wrap(apierr.BadRequest.Wrap(err))
	}
	return nil
}

// decodeBody reads at most maxJSONBytes from body and decodes it into dst.
func (v *validator) decodeBody(body io.Reader, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(body, maxJSONBytes+1))
	if err != nil {
		return oops.Code("REQUEST_READ_FAILED").Wrap(apierr.BadRequest.Wrap(err))
	}
	if len(raw) > maxJSONBytes {
		return oops.Code("REQUEST_TOO_LARGE").
			With("max", maxJSONBytes).
			Wrap(apierr.BadRequest.Wrap(errors.New("request body too large")))
	}
	return v.decode(raw, dst)
}
