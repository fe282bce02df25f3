package tools

import (
	"encoding/json"
	"fmt"
	"math"
)

// Validate checks required fields and primitive property types. It covers the
// subset of JSON schema the tool parameters use.
func Validate(args map[string]any, schema map[string]any) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	for _, field := range requiredFields(schema["required"]) {
		v, exists := args[field]
		if !exists || v == nil {
			return fmt.Errorf("missing required field: %s", field)
		}
	}
	props, _ := schema["properties"].(map[string]any)
	for key, value := range args {
		def, ok := props[key].(map[string]any)
		if !ok {
			continue
		}
		expected, _ := def["type"].(string)
		if expected == "" {
			continue
		}
		if err := validateType(value, expected); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func validateType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		switch v := value.(type) {
		case float32, float64, int, int64:
			return nil
		case json.Number:
			if _, err := v.Float64(); err == nil {
				return nil
			}
		}
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return nil
		case float64:
			if math.Trunc(v) == v {
				return nil
			}
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}
