package gemini

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ConvertSchema maps a JSON Schema subset (type, description, properties,
// items, required, enum, minItems, maxItems) onto genai.Schema. Keywords
// Gemini has no field for, such as additionalProperties, are ignored.
func ConvertSchema(def map[string]any) (*genai.Schema, error) {
	if def == nil {
		return nil, fmt.Errorf("nil schema")
	}
	s := &genai.Schema{}

	typ, _ := def["type"].(string)
	switch strings.ToLower(typ) {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		return nil, fmt.Errorf("unsupported schema type %q", typ)
	}

	if d, ok := def["description"].(string); ok {
		s.Description = d
	}
	if enum, ok := stringList(def["enum"]); ok {
		s.Enum = enum
	}
	if req, ok := stringList(def["required"]); ok {
		s.Required = req
	}
	if n, ok := toInt64(def["minItems"]); ok {
		s.MinItems = &n
	}
	if n, ok := toInt64(def["maxItems"]); ok {
		s.MaxItems = &n
	}

	if props, ok := def["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			child, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %q: not an object", name)
			}
			converted, err := ConvertSchema(child)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			s.Properties[name] = converted
		}
		if len(s.Required) > 0 {
			s.PropertyOrdering = append([]string(nil), s.Required...)
		}
	}

	if items, ok := def["items"].(map[string]any); ok {
		converted, err := ConvertSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		s.Items = converted
	}
	return s, nil
}

func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
