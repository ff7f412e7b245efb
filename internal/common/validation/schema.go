// internal/common/validation/schema.go
// Package validation checks template creation input against a JSON schema.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// templateInputSchema constrains the fields callers may supply when creating
// a template. generationPrompt length is bounded to keep compression inputs
// within the provider's context window.
var templateInputSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"name":             map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 255},
		"description":      map[string]interface{}{"type": "string", "minLength": 1},
		"tenantType":       map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 100},
		"taskType":         map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 100},
		"elementType":      map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 100},
		"generationPrompt": map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 20000},
		"retrievalPrompt":  map[string]interface{}{"type": "string"},
		"executionConfig": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"model":       map[string]interface{}{"type": "string"},
				"temperature": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 2},
				"maxTokens":   map[string]interface{}{"type": "integer", "minimum": 0},
			},
		},
		"variables": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name":        map[string]interface{}{"type": "string", "minLength": 1},
					"description": map[string]interface{}{"type": "string"},
					"required":    map[string]interface{}{"type": "boolean"},
				},
				"required": []string{"name"},
			},
		},
	},
	"required": []string{"name", "description", "tenantType", "taskType", "elementType", "generationPrompt"},
}

// ValidateTemplateInput validates creation input and returns a readable
// error summary, or "" when valid.
func ValidateTemplateInput(input map[string]interface{}) (string, error) {
	schemaLoader := gojsonschema.NewGoLoader(templateInputSchema)
	documentLoader := gojsonschema.NewGoLoader(input)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return "", fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return "", nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	return strings.Join(messages, "; "), nil
}
