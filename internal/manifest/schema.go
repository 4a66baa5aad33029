package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// manifestSchema is the structural contract for the environment manifest.
// Semantic rules (threshold monotonicity, allowlist presence) live in
// Manifest.Validate.
const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["runner", "allowlist", "rewards"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "allowlist": {"type": "array", "items": {"type": "string"}},
    "protected": {
      "type": "object",
      "properties": {
        "prefixes": {"type": "array", "items": {"type": "string"}},
        "dirs": {"type": "array", "items": {"type": "string"}},
        "suffixes": {"type": "array", "items": {"type": "string"}},
        "expression": {"type": "string"}
      },
      "additionalProperties": false
    },
    "runner": {
      "type": "object",
      "required": ["full"],
      "properties": {
        "full": {"type": "array", "items": {"type": "string"}, "minItems": 1},
        "targeted": {"type": "array", "items": {"type": "string"}},
        "timeout_seconds": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": false
    },
    "integrity": {
      "type": "object",
      "properties": {
        "files": {"type": "array", "items": {"type": "string"}},
        "min_bytes": {"type": "integer", "minimum": 0},
        "critical": {"type": "object", "additionalProperties": {"type": "string"}}
      },
      "additionalProperties": false
    },
    "targets": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    },
    "rewards": {
      "type": "object",
      "required": ["thresholds"],
      "properties": {
        "thresholds": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["pass_rate", "reward"],
            "properties": {
              "pass_rate": {"type": "number"},
              "reward": {"type": "number"}
            },
            "additionalProperties": false
          }
        },
        "regression_penalty_rate": {"type": "number"},
        "bonuses": {
          "type": "object",
          "properties": {
            "categories": {
              "type": "array",
              "items": {
                "type": "object",
                "required": ["category", "weight"],
                "properties": {
                  "category": {"type": "string"},
                  "weight": {"type": "number"}
                },
                "additionalProperties": false
              }
            },
            "chaos": {
              "type": "object",
              "required": ["category", "pass_rate", "weight"],
              "properties": {
                "category": {"type": "string"},
                "pass_rate": {"type": "number"},
                "weight": {"type": "number"}
              },
              "additionalProperties": false
            },
            "efficiency_weight": {"type": "number"}
          },
          "additionalProperties": false
        }
      },
      "additionalProperties": false
    },
    "run": {
      "type": "object",
      "properties": {
        "max_steps": {"type": "integer", "minimum": 1},
        "full_every": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": false
    },
    "bugs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string"},
          "dependent_tests": {"type": "array", "items": {"type": "string"}},
          "prerequisites": {"type": "array", "items": {"type": "string"}}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// validateSchema checks manifest YAML against the embedded JSON schema.
// The YAML is decoded generically and re-encoded as JSON because
// gojsonschema only understands JSON documents.
func validateSchema(data []byte) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("manifest is not valid YAML: %w", err)
	}

	docBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("manifest cannot be represented as JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(manifestSchema),
		gojsonschema.NewBytesLoader(docBytes),
	)
	if err != nil {
		return fmt.Errorf("manifest schema validation: %w", err)
	}

	if !result.Valid() {
		msg := "manifest schema validation failed:"
		for _, desc := range result.Errors() {
			msg += fmt.Sprintf("\n- %s", desc)
		}

		return fmt.Errorf("%s", msg)
	}

	return nil
}
