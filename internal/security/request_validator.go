package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONSchemaValidator rejects request bodies that do not match a compiled schema before the
// handler decodes them.
type JSONSchemaValidator struct {
	schema *jsonschema.Schema
}

func NewJSONSchemaValidator(name, schemaJSON string) (*JSONSchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := name + ".json"
	if err := compiler.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	return &JSONSchemaValidator{schema: schema}, nil
}

func (v *JSONSchemaValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil {
			WriteJSONErrorDetail(w, r, http.StatusBadRequest, "invalid_request", "request body is required")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				WriteJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large")
				return
			}
			WriteJSONError(w, r, http.StatusBadRequest, "invalid_request")
			return
		}
		_ = r.Body.Close()

		var payload interface{}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			WriteJSONErrorDetail(w, r, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
			return
		}

		if err := v.schema.Validate(payload); err != nil {
			WriteJSONErrorDetail(w, r, http.StatusBadRequest, "validation_error", schemaDetail(err))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// schemaDetail reports the first leaf failure as "<pointer>: <message>".
func schemaDetail(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return "request body does not match the schema"
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + leaf.Message
}
