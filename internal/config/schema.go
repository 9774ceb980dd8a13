package config

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// appConfigSchema checks the structural shape of the app config before it is
// decoded: field types and numeric ranges. Cross-field rules (e.g. the
// strategy name belonging to the closed set) stay in Validate, where typed
// values are available.
const appConfigSchema = `{
  "type": "object",
  "properties": {
    "llm": {
      "type": "object",
      "properties": {
        "model":        {"type": "string"},
        "base_url":     {"type": "string"},
        "api_key_env":  {"type": "string"},
        "timeout_secs": {"type": "integer", "minimum": 1},
        "max_attempts": {"type": "integer", "minimum": 1}
      }
    },
    "embedding": {
      "type": "object",
      "properties": {
        "model":        {"type": "string"},
        "base_url":     {"type": "string"},
        "api_key_env":  {"type": "string"},
        "timeout_secs": {"type": "integer", "minimum": 1}
      }
    },
    "vectordb": {
      "type": "object",
      "properties": {
        "threshold": {"type": "number", "minimum": 0, "maximum": 1},
        "n_results": {"type": "integer", "minimum": 1}
      }
    },
    "memory_strategies": {
      "type": "object",
      "properties": {
        "trimming_window_size":     {"type": "integer", "minimum": 1},
        "summarization_max_tokens": {"type": "integer", "minimum": 1}
      }
    },
    "reasoning_strategies": {
      "type": "object",
      "properties": {
        "default":   {"type": "string"},
        "templates": {"type": "object", "additionalProperties": {"type": "string"}},
        "react": {
          "type": "object",
          "properties": {
            "multi_call":     {"type": "boolean"},
            "max_iterations": {"type": "integer", "minimum": 1}
          }
        }
      }
    },
    "storage": {
      "type": "object",
      "properties": {
        "index_path":   {"type": "string"},
        "history_path": {"type": "string"},
        "database_url": {"type": "string"}
      }
    },
    "server": {
      "type": "object",
      "properties": {
        "bind_addr":         {"type": "string"},
        "metrics_namespace": {"type": "string"}
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level":  {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "format": {"type": "string", "enum": ["json", "text"]}
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("app_config.schema.json", appConfigSchema)

// validateSchema runs the raw YAML document through the JSON schema.
// yaml.v3 decodes into the same value shapes the schema library expects
// (string-keyed maps, ints, floats, bools).
func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse: %w", err)
	}
	if doc == nil {
		return nil
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("config: schema: %w", err)
	}
	return nil
}
