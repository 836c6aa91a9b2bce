package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// maxRequestBytes bounds request bodies; inline page HTML is the largest.
const maxRequestBytes = 8 << 20

const parseRequestSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "minLength": 1},
    "html": {"type": "string"}
  },
  "required": ["url"],
  "additionalProperties": false
}`

const watchRequestSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "minLength": 1}
  },
  "required": ["url"],
  "additionalProperties": false
}`

const savePostingSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "minLength": 1},
    "jobTitle": {"type": "string"},
    "companyName": {"type": "string"},
    "jobDescription": {"type": "string"}
  },
  "required": ["url"],
  "additionalProperties": false
}`

var (
	parseSchema = mustSchema(parseRequestSchema)
	watchSchema = mustSchema(watchRequestSchema)
	saveSchema  = mustSchema(savePostingSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return s
}

var errEmptyBody = errors.New("request body is required")

// decodeValid reads the body, validates it against schema, and decodes it
// into dst.
func decodeValid(r *http.Request, schema *gojsonschema.Schema, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errEmptyBody
	}

	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}
	return json.Unmarshal(body, dst)
}
