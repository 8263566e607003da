// Package util contains small shared helpers: payload schema validation used
// by the local capability servers before a handler runs.
package util

import (
	"fmt"
	"reflect"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Schema is a minimal JSON-schema-shaped description of a payload: field name
// to expected type ("string", "number", "boolean", "array", "object"), plus a
// required list.
type Schema struct {
	Properties map[string]string
	Required   []string
}

// ValidateParameters validates a payload map against a schema. It returns a
// *ValidationError describing the first violation found, or nil.
func ValidateParameters(params map[string]any, schema Schema) error {
	for _, name := range schema.Required {
		if _, ok := params[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	for name, val := range params {
		want, ok := schema.Properties[name]
		if !ok {
			return &ValidationError{Field: name, Value: val, Message: "unknown field"}
		}
		if val == nil {
			continue
		}
		if got := jsonType(val); got != want {
			return &ValidationError{
				Field:   name,
				Value:   val,
				Message: fmt.Sprintf("expected %s, got %s", want, got),
			}
		}
	}

	return nil
}

func jsonType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return "number"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
