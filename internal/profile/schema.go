package profile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// profileSchema is the structural pre-check run before typed binding:
// field presence and type, ahead of the cross-field invariants validate()
// enforces afterwards.
const profileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["model_id", "device_type"],
  "properties": {
    "model_id": {"type": "string", "minLength": 1},
    "device_type": {
      "type": "string",
      "enum": ["oscilloscope", "psu", "dmm", "awg", "load", "sa", "vna", "power_meter"]
    },
    "channels": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["index"],
        "properties": {"index": {"type": "integer"}, "role": {"type": "string"}}
      }
    },
    "accuracy_table": {"type": "object"},
    "safety_schema": {"type": "object"},
    "simulation": {"type": "object"}
  }
}`

var compiledProfileSchema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("profile.json", strings.NewReader(profileSchema)); err != nil {
		panic(err)
	}
	sch, err := c.Compile("profile.json")
	if err != nil {
		panic(err)
	}
	return sch
}()

// ValidateStructure runs the JSON-Schema structural pre-check over raw
// profile YAML bytes.
func ValidateStructure(yamlData []byte) error {
	var doc any
	if err := yaml.Unmarshal(yamlData, &doc); err != nil {
		return fmt.Errorf("yaml decode for schema check: %w", err)
	}
	normalized, err := normalizeForJSON(doc)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("marshal profile for schema check: %w", err)
	}
	var asAny any
	if err := json.Unmarshal(raw, &asAny); err != nil {
		return fmt.Errorf("unmarshal profile for schema check: %w", err)
	}
	if err := compiledProfileSchema.Validate(asAny); err != nil {
		return fmt.Errorf("profile structure invalid: %w", err)
	}
	return nil
}

// normalizeForJSON converts the map[string]interface{}/[]interface{} tree
// that yaml.v3 produces (which may contain non-string map keys, e.g. the
// safety_schema channel-index keys) into a tree json.Marshal accepts.
func normalizeForJSON(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			nv, err := normalizeForJSON(val)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			nv, err := normalizeForJSON(val)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprintf("%v", k)] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			nv, err := normalizeForJSON(val)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	default:
		return v, nil
	}
}
