package api

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/farm-season/internal/field"
)

// maxInterventionBody bounds a POST /intervention body.
const maxInterventionBody = 64 * 1024

const interventionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tool", "zones"],
  "additionalProperties": false,
  "properties": {
    "tool": {"type": "string", "minLength": 1, "maxLength": 32},
    "zones": {
      "type": "array",
      "minItems": 1,
      "maxItems": 1024,
      "items": {"type": "string", "pattern": "^[0-9]+:[0-9]+$"}
    }
  }
}`

var interventionValidator = jsonschema.MustCompileString("intervention.schema.json", interventionSchema)

type interventionRequest struct {
	Tool  string         `json:"tool"`
	Zones []field.ZoneID `json:"zones"`
}

// decodeIntervention validates the body against the schema before
// decoding it into typed values.
func decodeIntervention(body io.Reader) (interventionRequest, error) {
	var req interventionRequest
	raw, err := io.ReadAll(io.LimitReader(body, maxInterventionBody))
	if err != nil {
		return req, fmt.Errorf("read body: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return req, fmt.Errorf("invalid json: %w", err)
	}
	if err := interventionValidator.Validate(doc); err != nil {
		return req, fmt.Errorf("invalid intervention: %w", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("invalid intervention: %w", err)
	}
	return req, nil
}
