package scoresheet

import (
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
)

// envelopeSchema is the only shape a reply must satisfy to be accepted: an object with a
// players array. Individual entries are repaired field by field, never rejected.
const envelopeSchema = `{
  "type": "object",
  "required": ["players"],
  "properties": {
    "players": {"type": "array"},
    "extractionNotes": {}
  }
}`

var envelope = jsonschema.MustCompileString("scoresheet-envelope.json", envelopeSchema)

// ReplyJSONSchema returns the full reply shape we ask the model for, as a JSON-Schema
// (draft 2020-12 subset) map. Providers that accept a schema hint are sent this.
func ReplyJSONSchema() map[string]any {
	breakdownProps := map[string]any{}
	for _, c := range constants.AsStringSlice() {
		breakdownProps[c] = map[string]any{"type": "integer", "minimum": 0}
	}
	player := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"playerName": map[string]any{"type": "string", "minLength": 1},
			"totalScore": map[string]any{"type": "integer", "minimum": 0},
			"scoringBreakdown": map[string]any{
				"type":                 "object",
				"properties":           breakdownProps,
				"required":             constants.AsStringSlice(),
				"additionalProperties": false,
			},
		},
		"required": []string{"playerName", "totalScore", "scoringBreakdown"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"players":         map[string]any{"type": "array", "items": player},
			"extractionNotes": map[string]any{"type": "string"},
		},
		"required": []string{"players"},
	}
}
