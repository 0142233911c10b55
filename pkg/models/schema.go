package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation is returned when a document does not satisfy its JSON schema.
var ErrSchemaViolation = errors.New("document does not match schema")

// ErrInvalidSchema is returned for schemas that cannot be compiled.
var ErrInvalidSchema = errors.New("invalid JSON schema")

// JSONSchema is the subset of JSON Schema used for widget settings.
type JSONSchema struct {
	Type                 string               `json:"type"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	Required             []string             `json:"required,omitempty"`
	AdditionalProperties *bool                `json:"additionalProperties,omitempty"`
	Title                string               `json:"title,omitempty"`
	Description          string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []any                `json:"enum,omitempty"`
	Default     any                  `json:"default,omitempty"`
	Minimum     *float64             `json:"minimum,omitempty"`
	Maximum     *float64             `json:"maximum,omitempty"`
	MinLength   *int                 `json:"minLength,omitempty"`
	MaxLength   *int                 `json:"maxLength,omitempty"`
	Pattern     string               `json:"pattern,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
}

// CompileSchema checks that schema is a well-formed JSON schema, including a
// check against its draft's meta-schema.
func CompileSchema(schema any) error {
	loader := gojsonschema.NewSchemaLoader()
	loader.Validate = true

	if _, err := loader.Compile(gojsonschema.NewGoLoader(schema)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	return nil
}

// ValidateDocument checks data against schema. schema may be a *JSONSchema or a
// decoded JSON object; a nil schema accepts anything.
func ValidateDocument(schema any, data map[string]any) error {
	if schema == nil {
		return nil
	}

	switch typed := schema.(type) {
	case *JSONSchema:
		if typed == nil {
			return nil
		}
	case map[string]any:
		if typed == nil {
			return nil
		}
	}

	if data == nil {
		data = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(messages, "; "))
	}

	return nil
}
