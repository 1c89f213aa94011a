package tool

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValidateArgs checks args against the declared schema before invocation:
// required fields must be present and primitive types must match. A nil
// schema accepts anything.
func ValidateArgs(args map[string]any, schema *Schema) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	for _, field := range schema.Required {
		if _, exists := args[field]; !exists {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	for key, value := range args {
		prop, ok := schema.Properties[key]
		if !ok || prop == nil {
			continue
		}
		if err := validateType(value, prop.Type); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

func validateType(value any, expected Type) error {
	switch expected {
	case TypeString:
		if _, ok := value.(string); ok {
			return nil
		}
	case TypeNumber:
		if isNumber(value) {
			return nil
		}
	case TypeInteger:
		if isInteger(value) {
			return nil
		}
	case TypeBoolean:
		if _, ok := value.(bool); ok {
			return nil
		}
	case TypeArray:
		if _, ok := value.([]any); ok {
			return nil
		}
	case TypeObject:
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "":
		return nil
	default:
		return nil
	}
	return fmt.Errorf("expected %s, got %T", expected, value)
}

func isNumber(value any) bool {
	switch value.(type) {
	case float32, float64, int, int32, int64:
		return true
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		// JSON numbers decode to float64; accept whole values.
		return v == math.Trunc(v)
	case float32:
		return float64(v) == math.Trunc(float64(v))
	}
	return false
}

func (r *Registry) declarationListing() string {
	data, _ := json.MarshalIndent(r.Declarations(), "", "  ")
	return string(data)
}

func declarationJSON(d Declaration) string {
	data, _ := json.MarshalIndent(d, "", "  ")
	return string(data)
}
